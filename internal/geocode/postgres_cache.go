package geocode

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/party-rides/internal/models"
)

// PostgresCache implements Cache over the geocode_cache table. The first
// writer for a key wins; later writes of the same key are no-ops.
type PostgresCache struct {
	db *sql.DB
}

func NewPostgresCache(db *sql.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

func (p *PostgresCache) Get(ctx context.Context, key string) (models.Coordinates, bool, error) {
	var c models.Coordinates
	err := p.db.QueryRowContext(ctx, `SELECT lat, lng FROM geocode_cache WHERE address_hash = $1`, key).Scan(&c.Lat, &c.Lng)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Coordinates{}, false, nil
	}
	if err != nil {
		return models.Coordinates{}, false, err
	}
	return c, true, nil
}

func (p *PostgresCache) Put(ctx context.Context, key string, c models.Coordinates) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO geocode_cache(address_hash, lat, lng, created_at) VALUES($1,$2,$3,now()) ON CONFLICT (address_hash) DO NOTHING`,
		key, c.Lat, c.Lng)
	return err
}
