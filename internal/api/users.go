package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Username == "" || req.Email == "" {
		writeError(w, 400, "username and email are required")
		return
	}

	u, err := s.users.Create(r.Context(), req.Username, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 201, u)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request, _ int64) {
	users, err := s.users.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, users)
}
