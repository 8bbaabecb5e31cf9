package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"event-scheduler/pkg/apperr"
)

// PgStore is a PostgreSQL-backed grant store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the event_permissions table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS event_permissions (
			id       BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL,
			user_id  BIGINT NOT NULL,
			role     TEXT NOT NULL,
			username TEXT NOT NULL,
			UNIQUE (event_id, user_id)
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_permissions_user ON event_permissions(user_id)`)
	return err
}

// Upsert inserts or updates the (event_id, user_id) grant.
func (s *PgStore) Upsert(ctx context.Context, g *Grant) (*Grant, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO event_permissions (event_id, user_id, role, username)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING id`,
		g.EventID, g.UserID, g.Role, g.Username).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("upsert grant event=%d user=%d: %w", g.EventID, g.UserID, err)
	}
	return g, nil
}

// Get returns the grant for (eventID, userID), or (nil, nil) when absent.
func (s *PgStore) Get(ctx context.Context, eventID, userID int64) (*Grant, error) {
	var g Grant
	err := s.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, role, username
		FROM event_permissions WHERE event_id = $1 AND user_id = $2`,
		eventID, userID).Scan(&g.ID, &g.EventID, &g.UserID, &g.Role, &g.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grant event=%d user=%d: %w", eventID, userID, err)
	}
	return &g, nil
}

// ByEvent returns all explicit grants on an event.
func (s *PgStore) ByEvent(ctx context.Context, eventID int64) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, user_id, role, username
		FROM event_permissions WHERE event_id = $1 ORDER BY id ASC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("grants by event %d: %w", eventID, err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.EventID, &g.UserID, &g.Role, &g.Username); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AnyForUser reports whether the user holds a grant on any event.
func (s *PgStore) AnyForUser(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_permissions WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("grants for user %d: %w", userID, err)
	}
	return exists, nil
}

// UpdateRole changes the role of an existing grant.
func (s *PgStore) UpdateRole(ctx context.Context, eventID, userID int64, role Role) (*Grant, error) {
	var g Grant
	err := s.pool.QueryRow(ctx, `
		UPDATE event_permissions SET role = $3
		WHERE event_id = $1 AND user_id = $2
		RETURNING id, event_id, user_id, role, username`,
		eventID, userID, role).Scan(&g.ID, &g.EventID, &g.UserID, &g.Role, &g.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("permission")
	}
	if err != nil {
		return nil, fmt.Errorf("update grant event=%d user=%d: %w", eventID, userID, err)
	}
	return &g, nil
}

// Delete removes a grant.
func (s *PgStore) Delete(ctx context.Context, eventID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM event_permissions WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("delete grant event=%d user=%d: %w", eventID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("permission")
	}
	return nil
}
