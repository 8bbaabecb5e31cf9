package event

import (
	"context"
	"time"

	"event-scheduler/pkg/apperr"
	"event-scheduler/pkg/notify"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/version"
)

// Annotated is an event plus the caller's resolved role, as returned by
// read endpoints.
type Annotated struct {
	Event
	Permissions string `json:"permissions"`
}

// BatchError collects the validation messages for one rejected batch
// element.
type BatchError struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// BatchResult aggregates a batch create: created events, per-index
// failures, and an overall status ("ok", "partial", or "failed").
type BatchResult struct {
	Status  string       `json:"status"`
	Created []Event      `json:"created"`
	Errors  []BatchError `json:"errors"`
}

// Mutator validates and applies event mutations, consulting the
// permission resolver and conflict detector, snapshotting through the
// store's transactional methods, and emitting change notifications.
// Notification dispatch is fire-and-forget; it never affects durability.
type Mutator struct {
	events   Store
	versions version.Store
	grants   permission.Store
	resolver *permission.Resolver
	hub      *notify.Hub
}

// NewMutator wires a Mutator over the given collaborators.
func NewMutator(events Store, versions version.Store, grants permission.Store, hub *notify.Hub) *Mutator {
	return &Mutator{
		events:   events,
		versions: versions,
		grants:   grants,
		resolver: permission.NewResolver(grants),
		hub:      hub,
	}
}

// Resolver exposes the permission resolver for read-side annotation.
func (m *Mutator) Resolver() *permission.Resolver {
	return m.resolver
}

func roleString(r permission.Role) string {
	if r == permission.None {
		return "None"
	}
	return string(r)
}

// Create applies the create preconditions in precedence order: the
// global owners-only-create rule, the owner_id impersonation check, the
// time-conflict check, then field validation.
func (m *Mutator) Create(ctx context.Context, callerID int64, req CreateRequest) (*Event, error) {
	shared, err := m.grants.AnyForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if shared {
		return nil, apperr.Forbidden("only event owners can create events")
	}
	if req.OwnerID != nil && *req.OwnerID != callerID {
		return nil, apperr.Forbidden("owner_id cannot be assigned manually")
	}

	start, serr := ParseTime(req.StartTime)
	end, eerr := ParseTime(req.EndTime)
	if req.StartTime != "" && req.EndTime != "" && serr == nil && eerr == nil {
		if err := m.checkConflicts(ctx, callerID, start, end, 0); err != nil {
			return nil, err
		}
	}

	if _, _, errs := req.Validate(); len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}

	e := &Event{
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         start,
		EndTime:           end,
		Location:          req.Location,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		OwnerID:           callerID,
	}
	if err := m.events.Create(ctx, e, callerID); err != nil {
		return nil, err
	}

	m.hub.Publish(notify.EventCreated, notify.EventRoom(e.ID), e)
	return e, nil
}

// Get returns an event annotated with the caller's role.
func (m *Mutator) Get(ctx context.Context, callerID, id int64) (*Annotated, error) {
	e, err := m.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := m.resolver.Resolve(ctx, e.ID, e.OwnerID, callerID)
	if err != nil {
		return nil, err
	}
	return &Annotated{Event: *e, Permissions: roleString(role)}, nil
}

// Update applies a partial update. Only supplied fields that differ from
// current values count as changes; a no-op request returns changed=false
// and creates no version.
func (m *Mutator) Update(ctx context.Context, callerID, id int64, req UpdateRequest) (*Annotated, bool, error) {
	e, err := m.events.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	role, err := m.resolver.Resolve(ctx, e.ID, e.OwnerID, callerID)
	if err != nil {
		return nil, false, err
	}
	if !role.CanEdit() {
		return nil, false, apperr.Forbidden("permission denied")
	}

	if req.StartTime != nil || req.EndTime != nil {
		start, end := req.Window(e)
		if err := m.checkConflicts(ctx, callerID, start, end, e.ID); err != nil {
			return nil, false, err
		}
	}
	if errs := req.Validate(e); len(errs) > 0 {
		return nil, false, apperr.Validation(errs...)
	}

	changed := applyUpdate(e, req)
	ann := &Annotated{Event: *e, Permissions: roleString(role)}
	if !changed {
		return ann, false, nil
	}

	if err := m.events.Update(ctx, e, callerID); err != nil {
		return nil, false, err
	}
	ann.Event = *e

	m.hub.Publish(notify.EventUpdated, notify.EventRoom(e.ID), e)
	return ann, true, nil
}

// Delete removes the event, cascading grants and version history. Only
// the literal owner may delete.
func (m *Mutator) Delete(ctx context.Context, callerID, id int64) error {
	e, err := m.events.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.OwnerID != callerID {
		return apperr.Forbidden("only the owner can delete the event")
	}
	if err := m.events.Delete(ctx, id); err != nil {
		return err
	}

	m.hub.Publish(notify.EventDeleted, notify.EventRoom(id), map[string]any{
		"id":       id,
		"owner_id": callerID,
	})
	return nil
}

// BatchCreate processes each element independently: validation failures
// are collected per index without aborting the batch. The owners-only
// rule is a caller-level precondition and rejects the whole batch.
func (m *Mutator) BatchCreate(ctx context.Context, callerID int64, reqs []CreateRequest) (*BatchResult, error) {
	shared, err := m.grants.AnyForUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if shared {
		return nil, apperr.Forbidden("only event owners can create events")
	}

	res := &BatchResult{Created: []Event{}, Errors: []BatchError{}}
	for idx, req := range reqs {
		start, end, errs := req.Validate()
		if req.OwnerID != nil && *req.OwnerID != callerID {
			errs = append(errs, "owner_id cannot be assigned manually")
		}
		if len(errs) > 0 {
			res.Errors = append(res.Errors, BatchError{Index: idx, Errors: errs})
			continue
		}

		e := &Event{
			Title:             req.Title,
			Description:       req.Description,
			StartTime:         start,
			EndTime:           end,
			Location:          req.Location,
			IsRecurring:       req.IsRecurring,
			RecurrencePattern: req.RecurrencePattern,
			OwnerID:           callerID,
		}
		if err := m.events.Create(ctx, e, callerID); err != nil {
			res.Errors = append(res.Errors, BatchError{Index: idx, Errors: []string{err.Error()}})
			continue
		}
		res.Created = append(res.Created, *e)
		m.hub.Publish(notify.EventCreated, notify.EventRoom(e.ID), e)
	}

	switch {
	case len(res.Errors) == 0:
		res.Status = "ok"
	case len(res.Created) == 0:
		res.Status = "failed"
	default:
		res.Status = "partial"
	}
	return res, nil
}

// List returns one page of events visible to the caller, each annotated
// with the caller's resolved role.
func (m *Mutator) List(ctx context.Context, callerID int64, f Filter) ([]Annotated, int, error) {
	f.ViewerID = callerID
	events, total, err := m.events.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}

	annotated := make([]Annotated, 0, len(events))
	for i := range events {
		role, err := m.resolver.Resolve(ctx, events[i].ID, events[i].OwnerID, callerID)
		if err != nil {
			return nil, 0, err
		}
		annotated = append(annotated, Annotated{Event: events[i], Permissions: roleString(role)})
	}
	return annotated, total, nil
}

// Rollback overwrites the event's mutable fields from a prior snapshot
// and records the result as a new forward version. History is never
// truncated.
func (m *Mutator) Rollback(ctx context.Context, callerID, eventID int64, versionNum int) (*Event, error) {
	e, err := m.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	role, err := m.resolver.Resolve(ctx, e.ID, e.OwnerID, callerID)
	if err != nil {
		return nil, err
	}
	if !role.CanEdit() {
		return nil, apperr.Forbidden("permission denied")
	}

	snap, err := m.versions.Get(ctx, eventID, versionNum)
	if err != nil {
		return nil, err
	}
	data, err := snap.Decode()
	if err != nil {
		return nil, err
	}
	if err := applySnapshot(e, data); err != nil {
		return nil, err
	}

	if err := m.events.Update(ctx, e, callerID); err != nil {
		return nil, err
	}

	m.hub.Publish(notify.EventUpdated, notify.EventRoom(e.ID), e)
	return e, nil
}

func (m *Mutator) checkConflicts(ctx context.Context, ownerID int64, start, end time.Time, excludeID int64) error {
	conflicts, err := m.events.Conflicts(ctx, ownerID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	ids := make([]int64, len(conflicts))
	for i := range conflicts {
		ids[i] = conflicts[i].ID
	}
	return apperr.Conflict(ids)
}

// applyUpdate copies supplied, differing fields onto the event and
// reports whether anything changed.
func applyUpdate(e *Event, req UpdateRequest) bool {
	changed := false
	if req.Title != nil && *req.Title != e.Title {
		e.Title = *req.Title
		changed = true
	}
	if req.Description != nil && *req.Description != e.Description {
		e.Description = *req.Description
		changed = true
	}
	if req.Location != nil && *req.Location != e.Location {
		e.Location = *req.Location
		changed = true
	}
	if req.IsRecurring != nil && *req.IsRecurring != e.IsRecurring {
		e.IsRecurring = *req.IsRecurring
		changed = true
	}
	if req.RecurrencePattern != nil && *req.RecurrencePattern != e.RecurrencePattern {
		e.RecurrencePattern = *req.RecurrencePattern
		changed = true
	}
	if req.StartTime != nil {
		if t, err := ParseTime(*req.StartTime); err == nil && !t.Equal(e.StartTime) {
			e.StartTime = t
			changed = true
		}
	}
	if req.EndTime != nil {
		if t, err := ParseTime(*req.EndTime); err == nil && !t.Equal(e.EndTime) {
			e.EndTime = t
			changed = true
		}
	}
	return changed
}

// applySnapshot restores mutable fields from a decoded snapshot. Owner
// and id are untouched. Unparseable stored timestamps are corruption,
// not user error.
func applySnapshot(e *Event, data map[string]any) error {
	e.Title = stringField(data, "title")
	e.Description = stringField(data, "description")
	e.Location = stringField(data, "location")
	e.RecurrencePattern = stringField(data, "recurrence_pattern")
	e.IsRecurring, _ = data["is_recurring"].(bool)

	for key, dst := range map[string]*time.Time{"start_time": &e.StartTime, "end_time": &e.EndTime} {
		if s := stringField(data, key); s != "" {
			t, err := ParseTime(s)
			if err != nil {
				return apperr.Corrupt(err)
			}
			*dst = t
		}
	}
	return nil
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}
