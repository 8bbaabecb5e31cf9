// Package version keeps the append-only snapshot history of events.
// Snapshots are immutable once written and carry a single 1-based,
// gap-free version counter per event.
package version

import (
	"context"
	"encoding/json"
	"time"

	"event-scheduler/pkg/apperr"
)

// Snapshot records an event's mutable fields at one version. Data is the
// raw stored JSON; Decode parses it on demand so a corrupt row is
// surfaced where it is read, not silently dropped.
type Snapshot struct {
	ID         int64           `json:"-"`
	EventID    int64           `json:"event_id"`
	Version    int             `json:"version"`
	Data       json.RawMessage `json:"data"`
	ModifiedBy int64           `json:"modified_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Decode parses the snapshot payload. A parse failure is reported as
// data corruption, distinct from not-found.
func (s *Snapshot) Decode() (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(s.Data, &data); err != nil {
		return nil, apperr.Corrupt(err)
	}
	return data, nil
}

// Order selects the listing direction. The changelog view is oldest
// first; the history view is newest first.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// Store is the read contract for version history. Writes happen through
// the event store so a snapshot commits atomically with the mutation it
// records.
type Store interface {
	// List returns all snapshots of an event ordered by creation time.
	List(ctx context.Context, eventID int64, order Order) ([]Snapshot, error)

	// Get returns one snapshot by version number, or apperr.NotFound.
	Get(ctx context.Context, eventID int64, version int) (*Snapshot, error)

	// Count returns the total number of snapshots across all events.
	Count(ctx context.Context) (int, error)

	// EnsureTable creates the event_versions table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}
