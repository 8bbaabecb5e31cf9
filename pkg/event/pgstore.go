package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"event-scheduler/pkg/apperr"
	"event-scheduler/pkg/version"
)

// PgStore is a PostgreSQL-backed event store. Mutations run in explicit
// transactions so the row change and its version snapshot commit
// together.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the events table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id                 BIGSERIAL PRIMARY KEY,
			title              TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			start_time         TIMESTAMPTZ NOT NULL,
			end_time           TIMESTAMPTZ NOT NULL,
			location           TEXT NOT NULL DEFAULT '',
			is_recurring       BOOLEAN NOT NULL DEFAULT FALSE,
			recurrence_pattern TEXT NOT NULL DEFAULT '',
			owner_id           BIGINT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_owner_time ON events(owner_id, start_time, end_time)`)
	return err
}

const eventColumns = `id, title, description, start_time, end_time, location, is_recurring, recurrence_pattern, owner_id, created_at, updated_at`

// Create persists a new event and its version 1 snapshot atomically.
func (s *PgStore) Create(ctx context.Context, e *Event, modifiedBy int64) error {
	now := time.Now().Truncate(time.Microsecond)
	e.CreatedAt = now
	e.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO events (title, description, start_time, end_time, location, is_recurring, recurrence_pattern, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		e.Title, e.Description, e.StartTime, e.EndTime, e.Location, e.IsRecurring, e.RecurrencePattern, e.OwnerID, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if _, err := version.AppendTx(ctx, tx, e.ID, modifiedBy, e.SnapshotData(now)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event create: %w", err)
	}
	return nil
}

// Get returns an event by id.
func (s *PgStore) Get(ctx context.Context, id int64) (*Event, error) {
	var e Event
	err := s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Location,
			&e.IsRecurring, &e.RecurrencePattern, &e.OwnerID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("event")
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return &e, nil
}

// Update persists the event's field values and appends a snapshot
// atomically.
func (s *PgStore) Update(ctx context.Context, e *Event, modifiedBy int64) error {
	now := time.Now().Truncate(time.Microsecond)
	e.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, start_time = $4, end_time = $5, location = $6,
		    is_recurring = $7, recurrence_pattern = $8, updated_at = $9
		WHERE id = $1`,
		e.ID, e.Title, e.Description, e.StartTime, e.EndTime, e.Location,
		e.IsRecurring, e.RecurrencePattern, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event")
	}

	if _, err := version.AppendTx(ctx, tx, e.ID, modifiedBy, e.SnapshotData(now)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event update: %w", err)
	}
	return nil
}

// Delete removes the event and cascades its grants and version history in
// one transaction.
func (s *PgStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM event_permissions WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete grants for event %d: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM event_versions WHERE event_id = $1`, id); err != nil {
		return fmt.Errorf("delete versions for event %d: %w", id, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("event")
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event delete: %w", err)
	}
	return nil
}

// Conflicts returns owned events strictly overlapping [start, end).
func (s *PgStore) Conflicts(ctx context.Context, ownerID int64, start, end time.Time, excludeID int64) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE owner_id = $1 AND start_time < $3 AND end_time > $2 AND ($4 = 0 OR id <> $4)
		ORDER BY start_time ASC, id ASC`,
		ownerID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("conflicts for owner %d: %w", ownerID, err)
	}
	defer rows.Close()
	return scanEventRows(rows)
}

// List returns one page of events visible to the viewer, plus the total
// match count.
func (s *PgStore) List(ctx context.Context, f Filter) ([]Event, int, error) {
	where := []string{"(e.owner_id = $1 OR p.user_id = $1)"}
	args := []any{f.ViewerID}
	idx := 2

	addClause := func(clause string, arg any) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, arg)
		idx++
	}
	if f.Start != nil {
		addClause("e.start_time >= $%d", *f.Start)
	}
	if f.End != nil {
		addClause("e.end_time <= $%d", *f.End)
	}
	if f.OwnerID != nil {
		addClause("e.owner_id = $%d", *f.OwnerID)
	}
	if f.IsRecurring != nil {
		addClause("e.is_recurring = $%d", *f.IsRecurring)
	}

	base := ` FROM events e LEFT JOIN event_permissions p ON p.event_id = e.id WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT e.id)`+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 10
	}

	cols := "e.id, e.title, e.description, e.start_time, e.end_time, e.location, e.is_recurring, e.recurrence_pattern, e.owner_id, e.created_at, e.updated_at"
	query := fmt.Sprintf(`SELECT DISTINCT %s %s ORDER BY e.start_time ASC, e.id ASC LIMIT $%d OFFSET $%d`, cols, base, idx, idx+1)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// Count returns the total number of events.
func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

func scanEventRows(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &e.Location,
			&e.IsRecurring, &e.RecurrencePattern, &e.OwnerID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}
