package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/example/party-rides/internal/models"
)

//go:embed schema.sql
var schema string

const entryColumns = `id, party_id, kind, driver_mode, owner_id, departure_location, capacity, passengers, status, version, created_by, created_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the pool so the geocode cache can share it.
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

// Migrate applies the embedded schema. Every statement is idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.RideEntry, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ride_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (p *PostgresStore) ListActive(ctx context.Context, partyID string, kind models.Kind) ([]*models.RideEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ride_entries WHERE party_id = $1 AND kind = $2 AND status = 'active' ORDER BY created_at, id`,
		partyID, string(kind))
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (p *PostgresStore) ActiveRequestsByOwners(ctx context.Context, partyID string, ownerIDs []string) (map[string]*models.RideEntry, error) {
	out := make(map[string]*models.RideEntry, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ride_entries
		 WHERE party_id = $1 AND kind = 'request' AND status = 'active' AND owner_id = ANY($2)
		 ORDER BY created_at, id`,
		partyID, pq.Array(ownerIDs))
	if err != nil {
		return nil, err
	}
	es, err := collect(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range es {
		if _, seen := out[e.OwnerID]; !seen {
			out[e.OwnerID] = e
		}
	}
	return out, nil
}

// Commit runs the changeset in one transaction. Each update is guarded by
// its read version; the first update that matches no row aborts the whole
// transaction.
func (p *PostgresStore) Commit(ctx context.Context, cs Changeset) error {
	err := p.withinTx(ctx, func(tx *sql.Tx) error {
		for _, u := range cs.Updates {
			passengers, err := json.Marshal(nonNilPassengers(u.Passengers))
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE ride_entries SET passengers = $1, status = $2, version = version + 1, updated_at = $3
				 WHERE id = $4 AND version = $5`,
				passengers, string(u.Status), u.UpdatedAt, u.ID, u.Version)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrVersionConflict
			}
		}
		for _, in := range cs.Inserts {
			passengers, err := json.Marshal(nonNilPassengers(in.Passengers))
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO ride_entries(`+entryColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,1,$10,$11,$12)`,
				in.ID, in.PartyID, string(in.Kind), string(in.DriverMode), in.OwnerID, in.DepartureLocation,
				in.Capacity, passengers, string(in.Status), in.CreatedBy, in.CreatedAt, in.UpdatedAt)
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == "23505" {
					return ErrAlreadyExists
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, u := range cs.Updates {
		u.Version++
	}
	for _, in := range cs.Inserts {
		in.Version = 1
	}
	return nil
}

// withinTx commits when fn succeeds and rolls back on error or panic.
func (p *PostgresStore) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// VenueAddress implements the party directory lookup used for detour checks.
func (p *PostgresStore) VenueAddress(ctx context.Context, partyID string) (string, bool, error) {
	var addr string
	err := p.db.QueryRowContext(ctx, `SELECT venue_address FROM parties WHERE id = $1`, partyID).Scan(&addr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return addr, addr != "", nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.RideEntry, error) {
	var (
		e          models.RideEntry
		kind, mode string
		status     string
		passengers []byte
	)
	if err := s.Scan(&e.ID, &e.PartyID, &kind, &mode, &e.OwnerID, &e.DepartureLocation, &e.Capacity,
		&passengers, &status, &e.Version, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = models.Kind(kind)
	e.DriverMode = models.DriverMode(mode)
	e.Status = models.Status(status)
	if len(passengers) > 0 {
		if err := json.Unmarshal(passengers, &e.Passengers); err != nil {
			return nil, fmt.Errorf("decode passengers of %s: %w", e.ID, err)
		}
	}
	if len(e.Passengers) == 0 {
		e.Passengers = nil
	}
	return &e, nil
}

func collect(rows *sql.Rows) ([]*models.RideEntry, error) {
	defer rows.Close()
	out := make([]*models.RideEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNilPassengers(ps []models.Passenger) []models.Passenger {
	if ps == nil {
		return []models.Passenger{}
	}
	return ps
}
