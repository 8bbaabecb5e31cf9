// Package event holds the calendar event model and the Mutator that
// orchestrates role-gated, conflict-checked, versioned mutations.
package event

import (
	"context"
	"time"
)

// Event is the shared mutable resource. OwnerID and ID are immutable
// after creation; UpdatedAt is bumped on every mutation.
type Event struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Location          string    `json:"location"`
	IsRecurring       bool      `json:"is_recurring"`
	RecurrencePattern string    `json:"recurrence_pattern"`
	OwnerID           int64     `json:"owner_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SnapshotData captures all mutable fields for the version log, plus the
// server-side modification timestamp.
func (e *Event) SnapshotData(now time.Time) map[string]any {
	return map[string]any{
		"title":              e.Title,
		"description":        e.Description,
		"start_time":         e.StartTime.Format(time.RFC3339Nano),
		"end_time":           e.EndTime.Format(time.RFC3339Nano),
		"location":           e.Location,
		"is_recurring":       e.IsRecurring,
		"recurrence_pattern": e.RecurrencePattern,
		"modified_at":        now.Format(time.RFC3339Nano),
	}
}

// Filter selects and pages the event listing. Pointer fields are
// optional; ViewerID scopes visibility to owned or explicitly granted
// events.
type Filter struct {
	ViewerID    int64
	Start       *time.Time
	End         *time.Time
	OwnerID     *int64
	IsRecurring *bool
	Page        int
	PerPage     int
}

// Store is the contract for event persistence. Create, Update, and
// Delete are atomic units: the row mutation, its version snapshot, and
// (for Delete) the cascading removals commit or fail together.
type Store interface {
	// Create persists a new event and its version 1 snapshot, assigning
	// the id and timestamps.
	Create(ctx context.Context, e *Event, modifiedBy int64) error

	// Get returns an event by id, or apperr.NotFound.
	Get(ctx context.Context, id int64) (*Event, error)

	// Update persists the event's current field values, bumps UpdatedAt,
	// and appends a version snapshot.
	Update(ctx context.Context, e *Event, modifiedBy int64) error

	// Delete removes the event plus all of its grants and versions.
	Delete(ctx context.Context, id int64) error

	// List returns one page of visible events plus the total match count.
	List(ctx context.Context, f Filter) ([]Event, int, error)

	// Conflicts returns events owned by ownerID whose interval strictly
	// overlaps [start, end), excluding excludeID when non-zero.
	Conflicts(ctx context.Context, ownerID int64, start, end time.Time, excludeID int64) ([]Event, error)

	// Count returns the total number of events.
	Count(ctx context.Context) (int, error)

	// EnsureTable creates the events table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
