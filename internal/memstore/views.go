package memstore

import (
	"context"
	"time"

	"event-scheduler/pkg/event"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/user"
	"event-scheduler/pkg/version"
)

// The store contracts overlap in method names, so each is exposed as a
// thin view over the shared Store.

// Users returns the user.Store view.
func (s *Store) Users() user.Store { return usersView{s} }

// Events returns the event.Store view.
func (s *Store) Events() event.Store { return eventsView{s} }

// Grants returns the permission.Store view.
func (s *Store) Grants() permission.Store { return grantsView{s} }

// Versions returns the version.Store view.
func (s *Store) Versions() version.Store { return versionsView{s} }

type usersView struct{ s *Store }

func (v usersView) Create(ctx context.Context, username, email string) (*user.User, error) {
	return v.s.Create(ctx, username, email)
}
func (v usersView) Get(ctx context.Context, id int64) (*user.User, error) { return v.s.Get(ctx, id) }
func (v usersView) ByUsername(ctx context.Context, username string) (*user.User, error) {
	return v.s.ByUsername(ctx, username)
}
func (v usersView) List(ctx context.Context) ([]user.User, error) { return v.s.List(ctx) }
func (v usersView) Count(ctx context.Context) (int, error)        { return v.s.Count(ctx) }
func (v usersView) EnsureTable(ctx context.Context) error         { return v.s.EnsureTable(ctx) }

type eventsView struct{ s *Store }

func (v eventsView) Create(ctx context.Context, e *event.Event, modifiedBy int64) error {
	return v.s.CreateEvent(ctx, e, modifiedBy)
}
func (v eventsView) Get(ctx context.Context, id int64) (*event.Event, error) {
	return v.s.GetEvent(ctx, id)
}
func (v eventsView) Update(ctx context.Context, e *event.Event, modifiedBy int64) error {
	return v.s.UpdateEvent(ctx, e, modifiedBy)
}
func (v eventsView) Delete(ctx context.Context, id int64) error {
	return v.s.DeleteEvent(ctx, id)
}
func (v eventsView) List(ctx context.Context, f event.Filter) ([]event.Event, int, error) {
	return v.s.ListEvents(ctx, f)
}
func (v eventsView) Conflicts(ctx context.Context, ownerID int64, start, end time.Time, excludeID int64) ([]event.Event, error) {
	return v.s.Conflicts(ctx, ownerID, start, end, excludeID)
}
func (v eventsView) Count(ctx context.Context) (int, error) { return v.s.CountEvents(ctx) }
func (v eventsView) EnsureTable(ctx context.Context) error  { return v.s.EnsureTable(ctx) }

type grantsView struct{ s *Store }

func (v grantsView) Upsert(ctx context.Context, g *permission.Grant) (*permission.Grant, error) {
	return v.s.Upsert(ctx, g)
}
func (v grantsView) Get(ctx context.Context, eventID, userID int64) (*permission.Grant, error) {
	return v.s.GetGrant(ctx, eventID, userID)
}
func (v grantsView) ByEvent(ctx context.Context, eventID int64) ([]permission.Grant, error) {
	return v.s.ByEvent(ctx, eventID)
}
func (v grantsView) AnyForUser(ctx context.Context, userID int64) (bool, error) {
	return v.s.AnyForUser(ctx, userID)
}
func (v grantsView) UpdateRole(ctx context.Context, eventID, userID int64, role permission.Role) (*permission.Grant, error) {
	return v.s.UpdateRole(ctx, eventID, userID, role)
}
func (v grantsView) Delete(ctx context.Context, eventID, userID int64) error {
	return v.s.Delete(ctx, eventID, userID)
}
func (v grantsView) EnsureTable(ctx context.Context) error { return v.s.EnsureTable(ctx) }

type versionsView struct{ s *Store }

func (v versionsView) List(ctx context.Context, eventID int64, order version.Order) ([]version.Snapshot, error) {
	return v.s.ListVersions(ctx, eventID, order)
}
func (v versionsView) Get(ctx context.Context, eventID int64, ver int) (*version.Snapshot, error) {
	return v.s.GetVersion(ctx, eventID, ver)
}
func (v versionsView) Count(ctx context.Context) (int, error) { return v.s.CountVersions(ctx) }
func (v versionsView) EnsureTable(ctx context.Context) error  { return v.s.EnsureTable(ctx) }
