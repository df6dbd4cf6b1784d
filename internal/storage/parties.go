package storage

import (
	"context"
	"sync"
)

// MemoryParties is a static party directory for local runs and tests.
type MemoryParties struct {
	mu     sync.RWMutex
	venues map[string]string
}

func NewMemoryParties(venues map[string]string) *MemoryParties {
	m := make(map[string]string, len(venues))
	for k, v := range venues {
		m[k] = v
	}
	return &MemoryParties{venues: m}
}

func (m *MemoryParties) SetVenue(partyID, address string) {
	m.mu.Lock()
	m.venues[partyID] = address
	m.mu.Unlock()
}

func (m *MemoryParties) VenueAddress(_ context.Context, partyID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.venues[partyID]
	return addr, ok && addr != "", nil
}
