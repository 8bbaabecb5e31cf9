package permission

import (
	"context"
	"fmt"

	"event-scheduler/pkg/apperr"
	"event-scheduler/pkg/notify"
	"event-scheduler/pkg/user"
)

// ShareEntry is one requested grant in a share call.
type ShareEntry struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"permission"`
}

// AppliedGrant is one grant that was actually written.
type AppliedGrant struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// SkippedEntry reports why a share entry was not applied. The share API
// is a lenient bulk call: bad entries are skipped, not fatal, but each
// skip is reported.
type SkippedEntry struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// ShareResult aggregates a share call.
type ShareResult struct {
	Applied []AppliedGrant `json:"shared"`
	Skipped []SkippedEntry `json:"skipped"`
}

// Manager grants, updates, and revokes explicit roles on events.
type Manager struct {
	grants Store
	users  user.Store
	hub    *notify.Hub
}

// NewManager creates a Manager.
func NewManager(grants Store, users user.Store, hub *notify.Hub) *Manager {
	return &Manager{grants: grants, users: users, hub: hub}
}

// Share applies a list of grants to an event. Only the literal owner may
// call it. Each entry is validated independently: the role must be
// grantable, the target must exist and differ from the owner. Valid
// entries upsert; invalid entries land in the skipped list.
func (m *Manager) Share(ctx context.Context, eventID, ownerID, callerID int64, entries []ShareEntry) (*ShareResult, error) {
	if callerID != ownerID {
		return nil, apperr.Forbidden("only the owner can share the event")
	}

	res := &ShareResult{Applied: []AppliedGrant{}, Skipped: []SkippedEntry{}}
	for _, entry := range entries {
		if entry.UserID == 0 {
			res.Skipped = append(res.Skipped, SkippedEntry{UserID: entry.UserID, Reason: "user_id is required"})
			continue
		}
		if !ValidGrant(entry.Role) {
			res.Skipped = append(res.Skipped, SkippedEntry{UserID: entry.UserID, Reason: "role must be Editor or Viewer"})
			continue
		}
		if entry.UserID == ownerID {
			res.Skipped = append(res.Skipped, SkippedEntry{UserID: entry.UserID, Reason: "cannot share with the owner"})
			continue
		}
		target, err := m.users.Get(ctx, entry.UserID)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedEntry{UserID: entry.UserID, Reason: "user does not exist"})
			continue
		}

		g := &Grant{EventID: eventID, UserID: entry.UserID, Role: entry.Role, Username: target.Username}
		if _, err := m.grants.Upsert(ctx, g); err != nil {
			return nil, fmt.Errorf("share event %d: %w", eventID, err)
		}
		res.Applied = append(res.Applied, AppliedGrant{UserID: entry.UserID, Role: entry.Role})

		m.hub.Publish(notify.EventShared, notify.EventRoom(eventID), map[string]any{
			"event_id":            eventID,
			"shared_with_user_id": entry.UserID,
			"role":                entry.Role,
			"owner_id":            ownerID,
		})
	}

	m.hub.Publish(notify.EventShared, notify.EventRoom(eventID), map[string]any{
		"event_id":     eventID,
		"shared_users": res.Applied,
		"owner_id":     ownerID,
	})
	return res, nil
}

// List returns all explicit grants on an event.
func (m *Manager) List(ctx context.Context, eventID int64) ([]Grant, error) {
	return m.grants.ByEvent(ctx, eventID)
}

// UpdateRole changes an existing grant. Owner-only.
func (m *Manager) UpdateRole(ctx context.Context, eventID, ownerID, callerID, targetID int64, role Role) (*Grant, error) {
	if callerID != ownerID {
		return nil, apperr.Forbidden("only the owner can update permissions")
	}
	if !ValidGrant(role) {
		return nil, apperr.Validation("role must be Editor or Viewer")
	}
	return m.grants.UpdateRole(ctx, eventID, targetID, role)
}

// Revoke removes an existing grant. Owner-only.
func (m *Manager) Revoke(ctx context.Context, eventID, ownerID, callerID, targetID int64) error {
	if callerID != ownerID {
		return apperr.Forbidden("only the owner can remove permissions")
	}
	return m.grants.Delete(ctx, eventID, targetID)
}
