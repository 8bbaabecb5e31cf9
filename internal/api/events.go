package api

import (
	"encoding/json"
	"net/http"

	"event-scheduler/pkg/event"
)

func (s *Server) handleEventCreate(w http.ResponseWriter, r *http.Request, uid int64) {
	var req event.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	e, err := s.mutator.Create(r.Context(), uid, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 201, event.Annotated{Event: *e, Permissions: "Owner"})
}

func (s *Server) handleEventList(w http.ResponseWriter, r *http.Request, uid int64) {
	q := r.URL.Query()
	f := event.Filter{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", s.perPage),
	}

	if v := q.Get("start_time"); v != "" {
		t, err := event.ParseTime(v)
		if err != nil {
			writeError(w, 400, "invalid start_time or end_time filter")
			return
		}
		f.Start = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := event.ParseTime(v)
		if err != nil {
			writeError(w, 400, "invalid start_time or end_time filter")
			return
		}
		f.End = &t
	}
	if v := q.Get("owner_id"); v != "" {
		owner := int64(queryInt(r, "owner_id", 0))
		if owner <= 0 {
			writeError(w, 400, "invalid owner_id")
			return
		}
		f.OwnerID = &owner
	}
	if v := q.Get("is_recurring"); v != "" {
		switch v {
		case "true", "True":
			b := true
			f.IsRecurring = &b
		case "false", "False":
			b := false
			f.IsRecurring = &b
		default:
			writeError(w, 400, "invalid is_recurring filter")
			return
		}
	}

	events, total, err := s.mutator.List(r.Context(), uid, f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"page":     f.Page,
		"per_page": f.PerPage,
		"total":    total,
		"events":   events,
	})
}

func (s *Server) handleEventGet(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	e, err := s.mutator.Get(r.Context(), uid, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, e)
}

func (s *Server) handleEventUpdate(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	var req event.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	e, changed, err := s.mutator.Update(r.Context(), uid, id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !changed {
		writeJSON(w, 200, map[string]string{"msg": "No changes detected"})
		return
	}
	writeJSON(w, 200, e)
}

func (s *Server) handleEventDelete(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	if err := s.mutator.Delete(r.Context(), uid, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"msg": "Event deleted"})
}

func (s *Server) handleEventBatchCreate(w http.ResponseWriter, r *http.Request, uid int64) {
	var reqs []event.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, 400, "expected a list of event objects")
		return
	}

	res, err := s.mutator.BatchCreate(r.Context(), uid, reqs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusMultiStatus, res)
}
