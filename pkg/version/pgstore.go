package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"event-scheduler/internal/db"
	"event-scheduler/pkg/apperr"
)

// PgStore is a PostgreSQL-backed version store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the event_versions table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_versions (
			id          BIGSERIAL PRIMARY KEY,
			event_id    BIGINT NOT NULL,
			version     INTEGER NOT NULL,
			data        JSONB NOT NULL,
			modified_by BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (event_id, version)
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_versions_event ON event_versions(event_id, created_at)`)
	return err
}

// AppendTx writes the next snapshot for an event on the given querier.
// Run it on the same transaction as the mutation it records: the unique
// (event_id, version) constraint keeps the counter gap-free even if two
// transactions race to the same number.
func AppendTx(ctx context.Context, q db.Querier, eventID, modifiedBy int64, data map[string]any) (*Snapshot, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot data: %w", err)
	}

	var next int
	err = q.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM event_versions WHERE event_id = $1`,
		eventID).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("next version for event %d: %w", eventID, err)
	}

	snap := &Snapshot{
		EventID:    eventID,
		Version:    next,
		Data:       raw,
		ModifiedBy: modifiedBy,
		CreatedAt:  time.Now().Truncate(time.Microsecond),
	}
	err = q.QueryRow(ctx, `
		INSERT INTO event_versions (event_id, version, data, modified_by, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		RETURNING id`,
		snap.EventID, snap.Version, string(raw), snap.ModifiedBy, snap.CreatedAt).Scan(&snap.ID)
	if err != nil {
		return nil, fmt.Errorf("insert version %d for event %d: %w", next, eventID, err)
	}
	return snap, nil
}

// List returns all snapshots of an event ordered by creation time.
func (s *PgStore) List(ctx context.Context, eventID int64, order Order) ([]Snapshot, error) {
	dir := "ASC"
	if order == NewestFirst {
		dir = "DESC"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, event_id, version, data, modified_by, created_at
		FROM event_versions WHERE event_id = $1
		ORDER BY created_at %s, version %s`, dir, dir), eventID)
	if err != nil {
		return nil, fmt.Errorf("list versions for event %d: %w", eventID, err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.EventID, &snap.Version, &snap.Data, &snap.ModifiedBy, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return snaps, nil
}

// Get returns one snapshot by version number.
func (s *PgStore) Get(ctx context.Context, eventID int64, version int) (*Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, version, data, modified_by, created_at
		FROM event_versions WHERE event_id = $1 AND version = $2`,
		eventID, version).Scan(&snap.ID, &snap.EventID, &snap.Version, &snap.Data, &snap.ModifiedBy, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("version")
	}
	if err != nil {
		return nil, fmt.Errorf("get version %d for event %d: %w", version, eventID, err)
	}
	return &snap, nil
}

// Count returns the total number of snapshots across all events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_versions`).Scan(&n)
	return n, err
}
