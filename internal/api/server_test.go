package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-scheduler/internal/api"
	"event-scheduler/internal/memstore"
	"event-scheduler/pkg/notify"
)

type testAPI struct {
	store  *memstore.Store
	server *api.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s := memstore.New()
	return &testAPI{
		store:  s,
		server: api.New(s.Events(), s.Versions(), s.Grants(), s.Users(), notify.NewHub(), 10),
	}
}

// do performs a JSON request as the given user (0 means anonymous) and
// decodes the response body into a generic map or slice.
func (a *testAPI) do(t *testing.T, method, path string, uid int64, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := a.doRaw(t, method, path, uid, body)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	}
	return rec, out
}

func (a *testAPI) doList(t *testing.T, method, path string, uid int64, body any) (*httptest.ResponseRecorder, []any) {
	t.Helper()
	rec := a.doRaw(t, method, path, uid, body)
	var out []any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	}
	return rec, out
}

func (a *testAPI) doRaw(t *testing.T, method, path string, uid int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid > 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", uid))
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) addUser(t *testing.T, name string) int64 {
	t.Helper()
	u, err := a.store.Create(context.Background(), name, name+"@example.com")
	require.NoError(t, err)
	return u.ID
}

func eventBody(title, start, end string) map[string]any {
	return map[string]any{"title": title, "start_time": start, "end_time": end}
}

// createEvent creates an event through the API and returns its id.
func (a *testAPI) createEvent(t *testing.T, uid int64, title, start, end string) int64 {
	t.Helper()
	rec, out := a.do(t, "POST", "/api/events", uid, eventBody(title, start, end))
	require.Equal(t, 201, rec.Code, "body: %v", out)
	return int64(out["id"].(float64))
}

func TestUserRegistration(t *testing.T) {
	a := newTestAPI(t)

	rec, out := a.do(t, "POST", "/api/users", 0, map[string]any{"username": "alice", "email": "alice@example.com"})
	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "alice", out["username"])

	rec, out = a.do(t, "POST", "/api/users", 0, map[string]any{"username": "alice", "email": "other@example.com"})
	assert.Equal(t, 409, rec.Code)
	assert.Equal(t, "user already exists", out["error"])

	rec, out = a.do(t, "POST", "/api/users", 0, map[string]any{"username": "bob"})
	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "username and email are required", out["error"])
}

func TestAuthenticationRequired(t *testing.T) {
	a := newTestAPI(t)

	for _, path := range []string{"/api/events", "/api/users"} {
		rec, _ := a.do(t, "GET", path, 0, nil)
		assert.Equal(t, 401, rec.Code, "path %s", path)
	}

	req := httptest.NewRequest("GET", "/api/events", nil)
	req.Header.Set("X-User-ID", "abc")
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	assert.Equal(t, 401, rec.Code)
}

func TestEventCreateAndGet(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")

	rec, out := a.do(t, "POST", "/api/events", alice, eventBody("standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z"))
	require.Equal(t, 201, rec.Code)
	assert.Equal(t, "Owner", out["permissions"])
	id := int64(out["id"].(float64))

	rec, out = a.do(t, "GET", fmt.Sprintf("/api/events/%d", id), alice, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "standup", out["title"])

	rec, _ = a.do(t, "GET", "/api/events/9999", alice, nil)
	assert.Equal(t, 404, rec.Code)
	rec, _ = a.do(t, "GET", "/api/events/banana", alice, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestEventCreateValidationErrors(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")

	rec, out := a.do(t, "POST", "/api/events", alice, map[string]any{"start_time": "bad", "end_time": "worse"})
	assert.Equal(t, 400, rec.Code)
	errs, ok := out["errors"].([]any)
	require.True(t, ok)
	assert.Contains(t, errs, "Missing title")
	assert.Contains(t, errs, "start_time and end_time must be valid ISO format datetime strings")
}

func TestEventCreateConflictResponse(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")

	id := a.createEvent(t, alice, "a", "2026-03-01T10:00:00Z", "2026-03-01T11:00:00Z")

	rec, out := a.do(t, "POST", "/api/events", alice, eventBody("b", "2026-03-01T10:30:00Z", "2026-03-01T11:30:00Z"))
	assert.Equal(t, 409, rec.Code)
	assert.Equal(t, "Event conflict detected", out["message"])
	assert.Equal(t, []any{float64(id)}, out["conflicts"])
}

func TestEventListPaginationAndFilters(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")

	for i := 0; i < 3; i++ {
		a.createEvent(t, alice, fmt.Sprintf("e%d", i),
			fmt.Sprintf("2026-03-0%dT10:00:00Z", i+1),
			fmt.Sprintf("2026-03-0%dT11:00:00Z", i+1))
	}

	rec, out := a.do(t, "GET", "/api/events?page=1&per_page=2", alice, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, float64(3), out["total"])
	assert.Len(t, out["events"].([]any), 2)

	rec, out = a.do(t, "GET", "/api/events?page=2&per_page=2", alice, nil)
	require.Equal(t, 200, rec.Code)
	assert.Len(t, out["events"].([]any), 1)

	rec, out = a.do(t, "GET", "/api/events?start_time=2026-03-02T00:00:00Z", alice, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, float64(2), out["total"])

	rec, _ = a.do(t, "GET", "/api/events?start_time=whenever", alice, nil)
	assert.Equal(t, 400, rec.Code)
	rec, _ = a.do(t, "GET", "/api/events?is_recurring=maybe", alice, nil)
	assert.Equal(t, 400, rec.Code)
}

func TestEventUpdateFlow(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, out := a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"title": "daily sync"})
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "daily sync", out["title"])

	rec, out = a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"title": "daily sync"})
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "No changes detected", out["msg"])
}

func TestEventDeleteOwnerOnly(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	bob := a.addUser(t, "bob")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "DELETE", fmt.Sprintf("/api/events/%d", id), bob, nil)
	assert.Equal(t, 403, rec.Code)

	rec, out := a.do(t, "DELETE", fmt.Sprintf("/api/events/%d", id), alice, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Event deleted", out["msg"])

	rec, _ = a.do(t, "GET", fmt.Sprintf("/api/events/%d", id), alice, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestEventBatchCreate(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")

	rec, out := a.do(t, "POST", "/api/events/batch", alice, []map[string]any{
		eventBody("ok", "2026-03-01T10:00:00Z", "2026-03-01T11:00:00Z"),
		{"title": "broken"},
	})
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Equal(t, "partial", out["status"])
	assert.Len(t, out["created"].([]any), 1)
	assert.Len(t, out["errors"].([]any), 1)

	rec, _ = a.do(t, "POST", "/api/events/batch", alice, map[string]any{"title": "not a list"})
	assert.Equal(t, 400, rec.Code)
}

func shareBody(userID int64, role string) map[string]any {
	return map[string]any{"users": []map[string]any{{"user_id": userID, "permission": role}}}
}

func TestShareFlow(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	bob := a.addUser(t, "bob")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, out := a.do(t, "POST", fmt.Sprintf("/api/events/%d/share", id), alice, shareBody(bob, "Editor"))
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "Event shared with 1 user(s)", out["msg"])
	assert.Len(t, out["shared"].([]any), 1)
	assert.Empty(t, out["skipped"])

	// skipped entries are reported, not fatal
	rec, out = a.do(t, "POST", fmt.Sprintf("/api/events/%d/share", id), alice, shareBody(9999, "Viewer"))
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "Event shared with 0 user(s)", out["msg"])
	skipped := out["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "user does not exist", skipped[0].(map[string]any)["reason"])

	rec, _ = a.do(t, "POST", fmt.Sprintf("/api/events/%d/share", id), bob, shareBody(bob, "Viewer"))
	assert.Equal(t, 403, rec.Code)

	rec, _ = a.do(t, "POST", fmt.Sprintf("/api/events/%d/share", id), alice, map[string]any{})
	assert.Equal(t, 400, rec.Code)

	rec, _ = a.do(t, "POST", "/api/events/9999/share", alice, shareBody(bob, "Viewer"))
	assert.Equal(t, 404, rec.Code)
}

func TestPermissionLifecycle(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	bob := a.addUser(t, "bob")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "POST", fmt.Sprintf("/api/events/%d/share", id), alice, shareBody(bob, "Viewer"))
	require.Equal(t, 200, rec.Code)

	rec, grants := a.doList(t, "GET", fmt.Sprintf("/api/events/%d/permissions", id), alice, nil)
	require.Equal(t, 200, rec.Code)
	require.Len(t, grants, 1)
	g := grants[0].(map[string]any)
	assert.Equal(t, "bob", g["username"])
	assert.Equal(t, "Viewer", g["role"])

	rec, out := a.do(t, "PUT", fmt.Sprintf("/api/events/%d/permissions/%d", id, bob), alice, map[string]any{"role": "Editor"})
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Editor", out["role"])

	// only the owner may change grants
	rec, _ = a.do(t, "PUT", fmt.Sprintf("/api/events/%d/permissions/%d", id, bob), bob, map[string]any{"role": "Editor"})
	assert.Equal(t, 403, rec.Code)

	rec, out = a.do(t, "DELETE", fmt.Sprintf("/api/events/%d/permissions/%d", id, bob), alice, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Permission removed", out["msg"])

	rec, _ = a.do(t, "DELETE", fmt.Sprintf("/api/events/%d/permissions/%d", id, bob), alice, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestVersionHistoryAccess(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	mallory := a.addUser(t, "mallory")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"title": "daily sync"})
	require.Equal(t, 200, rec.Code)

	rec, history := a.doList(t, "GET", fmt.Sprintf("/api/events/%d/versions", id), alice, nil)
	require.Equal(t, 200, rec.Code)
	require.Len(t, history, 2)
	newest := history[0].(map[string]any)
	assert.Equal(t, float64(2), newest["version"])
	assert.Equal(t, "daily sync", newest["title"])
	assert.Equal(t, "alice", newest["modified_by"])

	rec, _ = a.do(t, "GET", fmt.Sprintf("/api/events/%d/versions", id), mallory, nil)
	assert.Equal(t, 403, rec.Code)

	rec, out := a.do(t, "GET", fmt.Sprintf("/api/events/%d/history/1", id), alice, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "standup", out["title"])

	rec, _ = a.do(t, "GET", fmt.Sprintf("/api/events/%d/history/42", id), alice, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestRollbackEndpoint(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"title": "daily sync"})
	require.Equal(t, 200, rec.Code)

	rec, out := a.do(t, "POST", fmt.Sprintf("/api/events/%d/rollback/1", id), alice, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "Rolled back to version 1", out["msg"])

	rec, out = a.do(t, "GET", fmt.Sprintf("/api/events/%d", id), alice, nil)
	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "standup", out["title"])
}

func TestChangelogEndpoint(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"location": "room 4"})
	require.Equal(t, 200, rec.Code)

	rec, log := a.doList(t, "GET", fmt.Sprintf("/api/events/%d/changelog", id), alice, nil)
	require.Equal(t, 200, rec.Code)
	require.Len(t, log, 2)
	first := log[0].(map[string]any)
	assert.Equal(t, float64(1), first["version"])
	data := first["data"].(map[string]any)
	assert.Equal(t, "standup", data["title"])

	rec, _ = a.do(t, "GET", "/api/events/9999/changelog", alice, nil)
	assert.Equal(t, 404, rec.Code)
}

func TestDiffEndpoint(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, _ := a.do(t, "PUT", fmt.Sprintf("/api/events/%d", id), alice, map[string]any{"title": "daily sync"})
	require.Equal(t, 200, rec.Code)

	rec, out := a.do(t, "GET", fmt.Sprintf("/api/events/%d/diff/1/2", id), alice, nil)
	require.Equal(t, 200, rec.Code)
	d := out["diff"].(map[string]any)
	changed := d["changed"].(map[string]any)
	title := changed["title"].(map[string]any)
	assert.Equal(t, "standup", title["old"])
	assert.Equal(t, "daily sync", title["new"])

	rec, out = a.do(t, "GET", fmt.Sprintf("/api/events/%d/diff/1/42", id), alice, nil)
	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "one or both versions not found", out["error"])
}

// A snapshot that fails to parse is a server fault, not a user error.
func TestCorruptSnapshotSurfacesAs500(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	id := a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	a.store.SeedSnapshot(id, 2, []byte("{not json"), alice)

	rec, out := a.do(t, "GET", fmt.Sprintf("/api/events/%d/history/2", id), alice, nil)
	assert.Equal(t, 500, rec.Code)
	assert.Equal(t, "failed to parse version data", out["error"])
}

func TestHealthAndStatus(t *testing.T) {
	a := newTestAPI(t)
	alice := a.addUser(t, "alice")
	a.createEvent(t, alice, "standup", "2026-03-01T10:00:00Z", "2026-03-01T10:30:00Z")

	rec, out := a.do(t, "GET", "/health", 0, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "ok", out["status"])

	rec, out = a.do(t, "GET", "/api/status", 0, nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, float64(1), out["users"])
	assert.Equal(t, float64(1), out["events"])
	assert.Equal(t, float64(1), out["versions"])
}
