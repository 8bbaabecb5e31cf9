// Package memstore provides an in-memory implementation of all four
// store contracts (users, events, grants, versions) with the same
// semantics as the PostgreSQL stores. It backs the test suites and makes
// the orchestration logic exercisable without a database.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"event-scheduler/pkg/apperr"
	"event-scheduler/pkg/event"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/user"
	"event-scheduler/pkg/version"
)

// Store implements user.Store, event.Store, permission.Store, and
// version.Store over process memory. All methods are safe for concurrent
// use; each mutation holds the lock end to end, mirroring the
// per-request transaction of the pg stores.
type Store struct {
	mu        sync.Mutex
	users     map[int64]*user.User
	events    map[int64]*event.Event
	grants    map[int64]map[int64]*permission.Grant // eventID -> userID
	versions  map[int64][]version.Snapshot
	nextUser  int64
	nextEvent int64
	nextGrant int64
	nextSnap  int64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[int64]*user.User),
		events:   make(map[int64]*event.Event),
		grants:   make(map[int64]map[int64]*permission.Grant),
		versions: make(map[int64][]version.Snapshot),
	}
}

// EnsureTable is a no-op; it satisfies all four store contracts.
func (s *Store) EnsureTable(ctx context.Context) error {
	return nil
}

// --- user.Store ---

func (s *Store) Create(ctx context.Context, username, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return nil, apperr.AlreadyExists("user")
		}
	}
	s.nextUser++
	u := &user.User{
		ID:        s.nextUser,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (s *Store) ByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (s *Store) List(ctx context.Context) ([]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

// --- event.Store ---

// CreateEvent persists a new event and its version 1 snapshot.
func (s *Store) CreateEvent(ctx context.Context, e *event.Event, modifiedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Truncate(time.Microsecond)
	s.nextEvent++
	e.ID = s.nextEvent
	e.CreatedAt = now
	e.UpdatedAt = now

	cp := *e
	s.events[e.ID] = &cp
	s.appendSnapshot(e.ID, modifiedBy, e.SnapshotData(now))
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, apperr.NotFound("event")
	}
	cp := *e
	return &cp, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *event.Event, modifiedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; !ok {
		return apperr.NotFound("event")
	}
	now := time.Now().Truncate(time.Microsecond)
	e.UpdatedAt = now

	cp := *e
	s.events[e.ID] = &cp
	s.appendSnapshot(e.ID, modifiedBy, e.SnapshotData(now))
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return apperr.NotFound("event")
	}
	delete(s.events, id)
	delete(s.grants, id)
	delete(s.versions, id)
	return nil
}

func (s *Store) Conflicts(ctx context.Context, ownerID int64, start, end time.Time, excludeID int64) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event.Event
	for _, e := range s.events {
		if e.OwnerID != ownerID || e.ID == excludeID {
			continue
		}
		if e.StartTime.Before(end) && e.EndTime.After(start) {
			out = append(out, *e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context, f event.Filter) ([]event.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []event.Event
	for _, e := range s.events {
		if !s.visible(e, f.ViewerID) {
			continue
		}
		if f.Start != nil && e.StartTime.Before(*f.Start) {
			continue
		}
		if f.End != nil && e.EndTime.After(*f.End) {
			continue
		}
		if f.OwnerID != nil && e.OwnerID != *f.OwnerID {
			continue
		}
		if f.IsRecurring != nil && e.IsRecurring != *f.IsRecurring {
			continue
		}
		matched = append(matched, *e)
	}
	sortEvents(matched)

	total := len(matched)
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 {
		perPage = 10
	}
	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	return matched[lo:hi], total, nil
}

func (s *Store) CountEvents(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), nil
}

func (s *Store) visible(e *event.Event, viewerID int64) bool {
	if e.OwnerID == viewerID {
		return true
	}
	_, ok := s.grants[e.ID][viewerID]
	return ok
}

func sortEvents(events []event.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
}

// --- permission.Store ---

func (s *Store) Upsert(ctx context.Context, g *permission.Grant) (*permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.grants[g.EventID]
	if !ok {
		byUser = make(map[int64]*permission.Grant)
		s.grants[g.EventID] = byUser
	}
	if existing, ok := byUser[g.UserID]; ok {
		existing.Role = g.Role
		g.ID = existing.ID
		return g, nil
	}
	s.nextGrant++
	g.ID = s.nextGrant
	cp := *g
	byUser[g.UserID] = &cp
	return g, nil
}

func (s *Store) GetGrant(ctx context.Context, eventID, userID int64) (*permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[eventID][userID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *Store) ByEvent(ctx context.Context, eventID int64) ([]permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []permission.Grant
	for _, g := range s.grants[eventID] {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AnyForUser(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, byUser := range s.grants {
		if _, ok := byUser[userID]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateRole(ctx context.Context, eventID, userID int64, role permission.Role) (*permission.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[eventID][userID]
	if !ok {
		return nil, apperr.NotFound("permission")
	}
	g.Role = role
	cp := *g
	return &cp, nil
}

func (s *Store) Delete(ctx context.Context, eventID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[eventID][userID]; !ok {
		return apperr.NotFound("permission")
	}
	delete(s.grants[eventID], userID)
	return nil
}

// --- version.Store ---

func (s *Store) ListVersions(ctx context.Context, eventID int64, order version.Order) ([]version.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.versions[eventID]
	out := make([]version.Snapshot, len(snaps))
	copy(out, snaps)
	if order == version.NewestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *Store) GetVersion(ctx context.Context, eventID int64, v int) (*version.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.versions[eventID] {
		if snap.Version == v {
			cp := snap
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("version")
}

func (s *Store) CountVersions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, snaps := range s.versions {
		n += len(snaps)
	}
	return n, nil
}

// SeedSnapshot appends a raw snapshot row, bypassing the event store.
// Tests use it to plant corrupt payloads.
func (s *Store) SeedSnapshot(eventID int64, v int, raw []byte, modifiedBy int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSnap++
	s.versions[eventID] = append(s.versions[eventID], version.Snapshot{
		ID:         s.nextSnap,
		EventID:    eventID,
		Version:    v,
		Data:       raw,
		ModifiedBy: modifiedBy,
		CreatedAt:  time.Now(),
	})
}

func (s *Store) appendSnapshot(eventID, modifiedBy int64, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("{}")
	}
	s.nextSnap++
	s.versions[eventID] = append(s.versions[eventID], version.Snapshot{
		ID:         s.nextSnap,
		EventID:    eventID,
		Version:    len(s.versions[eventID]) + 1,
		Data:       raw,
		ModifiedBy: modifiedBy,
		CreatedAt:  time.Now().Truncate(time.Microsecond),
	})
}
