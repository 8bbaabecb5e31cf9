package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"event-scheduler/pkg/permission"
)

func (s *Server) handleEventShare(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	e, err := s.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		Users []permission.ShareEntry `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Users == nil {
		writeError(w, 400, "missing 'users' list in request body")
		return
	}

	res, err := s.sharing.Share(r.Context(), e.ID, e.OwnerID, uid, req.Users)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"msg":     fmt.Sprintf("Event shared with %d user(s)", len(res.Applied)),
		"shared":  res.Applied,
		"skipped": res.Skipped,
	})
}

func (s *Server) handlePermissionList(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	if _, err := s.events.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	grants, err := s.sharing.List(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(grants))
	for _, g := range grants {
		out = append(out, map[string]any{
			"user_id":  g.UserID,
			"role":     g.Role,
			"username": g.Username,
		})
	}
	writeJSON(w, 200, out)
}

func (s *Server) handlePermissionUpdate(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	target, ok := pathID(r, "user_id")
	if !ok {
		writeError(w, 404, "permission not found")
		return
	}
	e, err := s.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req struct {
		Role permission.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	g, err := s.sharing.UpdateRole(r.Context(), e.ID, e.OwnerID, uid, target, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{
		"msg":      "Permission updated",
		"user_id":  g.UserID,
		"role":     g.Role,
		"username": g.Username,
	})
}

func (s *Server) handlePermissionDelete(w http.ResponseWriter, r *http.Request, uid int64) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, 404, "event not found")
		return
	}
	target, ok := pathID(r, "user_id")
	if !ok {
		writeError(w, 404, "permission not found")
		return
	}
	e, err := s.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.sharing.Revoke(r.Context(), e.ID, e.OwnerID, uid, target); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"msg": "Permission removed"})
}
