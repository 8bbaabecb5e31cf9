// Package permission resolves and manages per-event access roles.
package permission

import (
	"context"
)

// Role is a principal's effective permission level on one event.
type Role string

const (
	Owner  Role = "Owner"
	Editor Role = "Editor"
	Viewer Role = "Viewer"

	// None means no access. The zero value, never stored.
	None Role = ""
)

// CanEdit reports whether the role permits mutating the event.
func (r Role) CanEdit() bool {
	return r == Owner || r == Editor
}

// ValidGrant reports whether the role may be granted explicitly. Owner is
// implicit via Event.OwnerID and is never materialized as a grant row.
func ValidGrant(r Role) bool {
	return r == Editor || r == Viewer
}

// Grant is an explicit (event, user) role assignment. At most one row per
// pair; the target's username is denormalized for display.
type Grant struct {
	ID       int64  `json:"id"`
	EventID  int64  `json:"event_id"`
	UserID   int64  `json:"user_id"`
	Role     Role   `json:"role"`
	Username string `json:"username"`
}

// Store is the contract for grant persistence.
type Store interface {
	// Upsert inserts the grant or updates the role of an existing
	// (event_id, user_id) row.
	Upsert(ctx context.Context, g *Grant) (*Grant, error)

	// Get returns the grant for (eventID, userID), or (nil, nil) when no
	// grant exists.
	Get(ctx context.Context, eventID, userID int64) (*Grant, error)

	// ByEvent returns all explicit grants on an event.
	ByEvent(ctx context.Context, eventID int64) ([]Grant, error)

	// AnyForUser reports whether the user holds a grant on any event.
	// Gates the owners-only-create rule.
	AnyForUser(ctx context.Context, userID int64) (bool, error)

	// UpdateRole changes the role of an existing grant. Returns
	// apperr.NotFound when no grant exists for the pair.
	UpdateRole(ctx context.Context, eventID, userID int64, role Role) (*Grant, error)

	// Delete removes a grant. Returns apperr.NotFound when no grant
	// exists for the pair.
	Delete(ctx context.Context, eventID, userID int64) error

	// EnsureTable creates the event_permissions table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

// Resolver derives a principal's effective role for an event: Owner when
// the principal owns it, else the explicit grant's role, else None.
type Resolver struct {
	grants Store
}

// NewResolver creates a Resolver over the given grant store.
func NewResolver(grants Store) *Resolver {
	return &Resolver{grants: grants}
}

// Resolve is a pure read; it never mutates state.
func (r *Resolver) Resolve(ctx context.Context, eventID, ownerID, userID int64) (Role, error) {
	if ownerID == userID {
		return Owner, nil
	}
	g, err := r.grants.Get(ctx, eventID, userID)
	if err != nil {
		return None, err
	}
	if g == nil {
		return None, nil
	}
	return g.Role, nil
}
