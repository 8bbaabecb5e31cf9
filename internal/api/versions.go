package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"event-scheduler/pkg/diff"
	"event-scheduler/pkg/event"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/version"
)

// username resolves a principal id for display, tolerating deleted users.
func (s *Server) username(ctx context.Context, cache map[int64]string, id int64) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := "Unknown"
	if u, err := s.users.Get(ctx, id); err == nil {
		name = u.Username
	}
	cache[id] = name
	return name
}

// historyEntry flattens a snapshot for the history view: the data fields
// are merged into the top level next to the version metadata.
func (s *Server) historyEntry(ctx context.Context, cache map[int64]string, snap *version.Snapshot) (map[string]any, error) {
	data, err := snap.Decode()
	if err != nil {
		return nil, err
	}
	entry := make(map[string]any, len(data)+3)
	for k, v := range data {
		entry[k] = v
	}
	entry["version"] = snap.Version
	entry["modified_by"] = s.username(ctx, cache, snap.ModifiedBy)
	entry["created_at"] = snap.CreatedAt.Format(time.RFC3339Nano)
	return entry, nil
}

// requireRole resolves the caller's role on an event, rejecting callers
// with no access.
func (s *Server) requireRole(ctx context.Context, e *event.Event, uid int64) (permission.Role, error) {
	role, err := s.mutator.Resolver().Resolve(ctx, e.ID, e.OwnerID, uid)
	if err != nil {
		return permission.None, err
	}
	return role, nil
}

func (s *Server) handleVersionList(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	ctx := r.Context()
	e, err := s.events.Get(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	role, err := s.requireRole(ctx, e, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if role == permission.None {
		writeError(w, 403, "permission denied")
		return
	}

	snaps, err := s.versions.List(ctx, id, version.NewestFirst)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cache := map[int64]string{}
	out := make([]map[string]any, 0, len(snaps))
	for i := range snaps {
		entry, err := s.historyEntry(ctx, cache, &snaps[i])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out = append(out, entry)
	}
	writeJSON(w, 200, out)
}

func (s *Server) handleVersionGet(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	vnum, ok := pathID(r, "version")
	if !ok {
		writeError(w, 404, "version not found")
		return
	}
	ctx := r.Context()
	e, err := s.events.Get(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	role, err := s.requireRole(ctx, e, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if role == permission.None {
		writeError(w, 403, "permission denied")
		return
	}

	snap, err := s.versions.Get(ctx, id, int(vnum))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	entry, err := s.historyEntry(ctx, map[int64]string{}, snap)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, entry)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	vnum, ok := pathID(r, "version")
	if !ok {
		writeError(w, 404, "version not found")
		return
	}

	if _, err := s.mutator.Rollback(r.Context(), uid, id, int(vnum)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"msg": fmt.Sprintf("Rolled back to version %d", vnum)})
}

func (s *Server) handleChangelog(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	ctx := r.Context()
	if _, err := s.events.Get(ctx, id); err != nil {
		writeServiceError(w, err)
		return
	}

	snaps, err := s.versions.List(ctx, id, version.OldestFirst)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(snaps) == 0 {
		writeError(w, 404, "no versions found for this event")
		return
	}

	cache := map[int64]string{}
	out := make([]map[string]any, 0, len(snaps))
	for i := range snaps {
		data, err := snaps[i].Decode()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out = append(out, map[string]any{
			"version":     snaps[i].Version,
			"created_at":  snaps[i].CreatedAt.Format(time.RFC3339Nano),
			"modified_by": s.username(ctx, cache, snaps[i].ModifiedBy),
			"data":        data,
		})
	}
	writeJSON(w, 200, out)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	v1, ok1 := pathID(r, "v1")
	v2, ok2 := pathID(r, "v2")
	if !ok1 || !ok2 {
		writeError(w, 404, "one or both versions not found")
		return
	}
	ctx := r.Context()
	if _, err := s.events.Get(ctx, id); err != nil {
		writeServiceError(w, err)
		return
	}

	snapA, errA := s.versions.Get(ctx, id, int(v1))
	snapB, errB := s.versions.Get(ctx, id, int(v2))
	if errA != nil || errB != nil {
		writeError(w, 404, "one or both versions not found")
		return
	}

	dataA, err := snapA.Decode()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dataB, err := snapB.Decode()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, 200, map[string]any{"diff": diff.Compare(dataA, dataB)})
}
