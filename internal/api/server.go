// Package api exposes the HTTP surface. Identity is supplied by the
// identity collaborator as a verified principal id in the X-User-ID
// header; the server trusts it and never re-verifies credentials.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"event-scheduler/pkg/apperr"
	"event-scheduler/pkg/event"
	"event-scheduler/pkg/notify"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/user"
	"event-scheduler/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	events   event.Store
	versions version.Store
	users    user.Store
	mutator  *event.Mutator
	sharing  *permission.Manager
	hub      *notify.Hub
	perPage  int
	mux      *http.ServeMux
}

// New creates a new Server over the given stores and notification hub.
func New(events event.Store, versions version.Store, grants permission.Store, users user.Store, hub *notify.Hub, perPage int) *Server {
	if perPage < 1 {
		perPage = 10
	}
	s := &Server{
		events:   events,
		versions: versions,
		users:    users,
		mutator:  event.NewMutator(events, versions, grants, hub),
		sharing:  permission.NewManager(grants, users, hub),
		hub:      hub,
		perPage:  perPage,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Users (registration is open; the identity collaborator owns credentials)
	s.mux.HandleFunc("POST /api/users", s.handleUserCreate)
	s.mux.HandleFunc("GET /api/users", s.withUser(s.handleUserList))

	// Events
	s.mux.HandleFunc("POST /api/events", s.withUser(s.handleEventCreate))
	s.mux.HandleFunc("GET /api/events", s.withUser(s.handleEventList))
	s.mux.HandleFunc("POST /api/events/batch", s.withUser(s.handleEventBatchCreate))
	s.mux.HandleFunc("GET /api/events/stream", s.withUser(s.handleEventStream))
	s.mux.HandleFunc("GET /api/events/{id}", s.withUser(s.handleEventGet))
	s.mux.HandleFunc("PUT /api/events/{id}", s.withUser(s.handleEventUpdate))
	s.mux.HandleFunc("DELETE /api/events/{id}", s.withUser(s.handleEventDelete))

	// Collaboration
	s.mux.HandleFunc("POST /api/events/{id}/share", s.withUser(s.handleEventShare))
	s.mux.HandleFunc("GET /api/events/{id}/permissions", s.withUser(s.handlePermissionList))
	s.mux.HandleFunc("PUT /api/events/{id}/permissions/{user_id}", s.withUser(s.handlePermissionUpdate))
	s.mux.HandleFunc("DELETE /api/events/{id}/permissions/{user_id}", s.withUser(s.handlePermissionDelete))

	// Versioning
	s.mux.HandleFunc("GET /api/events/{id}/versions", s.withUser(s.handleVersionList))
	s.mux.HandleFunc("GET /api/events/{id}/history/{version}", s.withUser(s.handleVersionGet))
	s.mux.HandleFunc("POST /api/events/{id}/rollback/{version}", s.withUser(s.handleRollback))

	// Changelog
	s.mux.HandleFunc("GET /api/events/{id}/changelog", s.withUser(s.handleChangelog))
	s.mux.HandleFunc("GET /api/events/{id}/diff/{v1}/{v2}", s.withUser(s.handleDiff))

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

// withUser extracts the verified principal id from X-User-ID.
func (s *Server) withUser(h func(w http.ResponseWriter, r *http.Request, userID int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		uid, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || uid <= 0 {
			writeError(w, 401, "missing or invalid X-User-ID")
			return
		}
		h(w, r, uid)
	}
}

// pathID parses a numeric path segment; a non-numeric value behaves like
// a missing resource.
func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		ve *apperr.ValidationError
		ae *apperr.AuthorizationError
		nf *apperr.NotFoundError
		ex *apperr.AlreadyExistsError
		ce *apperr.ConflictError
		cd *apperr.CorruptDataError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, 400, map[string]any{"errors": ve.Messages})
	case errors.As(err, &ae):
		writeError(w, 403, ae.Reason)
	case errors.As(err, &nf):
		writeError(w, 404, nf.Error())
	case errors.As(err, &ex):
		writeError(w, 409, ex.Error())
	case errors.As(err, &ce):
		writeJSON(w, 409, map[string]any{
			"message":   "Event conflict detected",
			"conflicts": ce.IDs,
		})
	case errors.As(err, &cd):
		writeError(w, 500, "failed to parse version data")
	default:
		writeError(w, 500, err.Error())
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventCount, _ := s.events.Count(ctx)
	versionCount, _ := s.versions.Count(ctx)
	userCount, _ := s.users.Count(ctx)

	writeJSON(w, 200, map[string]any{
		"events":   eventCount,
		"versions": versionCount,
		"users":    userCount,
	})
}
