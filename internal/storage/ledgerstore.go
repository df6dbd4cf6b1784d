package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/example/party-rides/internal/models"
)

var (
	ErrNotFound        = errors.New("storage: entry not found")
	ErrAlreadyExists   = errors.New("storage: entry already exists")
	ErrVersionConflict = errors.New("storage: version conflict")
)

// Changeset is applied atomically by Commit. Every entry in Updates must
// carry the Version it was read at; the commit fails with ErrVersionConflict
// if any of them moved in the meantime, and nothing is written.
// On success the versions of the caller's entries are bumped in place.
type Changeset struct {
	Updates []*models.RideEntry
	Inserts []*models.RideEntry
}

// LedgerStore defines persistence operations for ride entries.
type LedgerStore interface {
	Get(ctx context.Context, id string) (*models.RideEntry, error)
	// ListActive returns active entries of one kind in creation order.
	ListActive(ctx context.Context, partyID string, kind models.Kind) ([]*models.RideEntry, error)
	// ActiveRequestsByOwners returns the oldest active request per owner, for
	// the owners that have one.
	ActiveRequestsByOwners(ctx context.Context, partyID string, ownerIDs []string) (map[string]*models.RideEntry, error)
	Commit(ctx context.Context, cs Changeset) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.RideEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*models.RideEntry)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.RideEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *MemoryStore) ListActive(_ context.Context, partyID string, kind models.Kind) ([]*models.RideEntry, error) {
	m.mu.RLock()
	out := make([]*models.RideEntry, 0)
	for _, e := range m.entries {
		if e.PartyID == partyID && e.Kind == kind && e.IsActive() {
			out = append(out, e.Clone())
		}
	}
	m.mu.RUnlock()
	sortByCreation(out)
	return out, nil
}

func (m *MemoryStore) ActiveRequestsByOwners(_ context.Context, partyID string, ownerIDs []string) (map[string]*models.RideEntry, error) {
	want := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		want[id] = struct{}{}
	}
	m.mu.RLock()
	matches := make([]*models.RideEntry, 0)
	for _, e := range m.entries {
		if e.PartyID != partyID || e.Kind != models.KindRequest || !e.IsActive() {
			continue
		}
		if _, ok := want[e.OwnerID]; ok {
			matches = append(matches, e.Clone())
		}
	}
	m.mu.RUnlock()

	sortByCreation(matches)
	out := make(map[string]*models.RideEntry, len(matches))
	for _, e := range matches {
		if _, seen := out[e.OwnerID]; !seen {
			out[e.OwnerID] = e
		}
	}
	return out, nil
}

func (m *MemoryStore) Commit(_ context.Context, cs Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range cs.Updates {
		cur, ok := m.entries[u.ID]
		if !ok {
			return ErrNotFound
		}
		if cur.Version != u.Version {
			return ErrVersionConflict
		}
	}
	for _, in := range cs.Inserts {
		if _, ok := m.entries[in.ID]; ok {
			return ErrAlreadyExists
		}
	}

	for _, u := range cs.Updates {
		u.Version++
		m.entries[u.ID] = u.Clone()
	}
	for _, in := range cs.Inserts {
		in.Version = 1
		m.entries[in.ID] = in.Clone()
	}
	return nil
}

func sortByCreation(es []*models.RideEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		if !es[i].CreatedAt.Equal(es[j].CreatedAt) {
			return es[i].CreatedAt.Before(es[j].CreatedAt)
		}
		return es[i].ID < es[j].ID
	})
}
