package geocode

import (
	"context"

	"github.com/example/party-rides/internal/models"
)

// StaticProvider answers from a fixed table. Keys are normalized on
// construction. Used for local runs without a geocoding account, and in tests.
type StaticProvider struct {
	table map[string]models.Coordinates
}

func NewStaticProvider(table map[string]models.Coordinates) *StaticProvider {
	m := make(map[string]models.Coordinates, len(table))
	for addr, c := range table {
		m[Normalize(addr)] = c
	}
	return &StaticProvider{table: m}
}

func (s *StaticProvider) Lookup(ctx context.Context, address string) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	c, ok := s.table[Normalize(address)]
	if !ok {
		return models.Coordinates{}, ErrNotFound
	}
	return c, nil
}
