package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

type testServer struct {
	*httptest.Server
	tracker *tracker.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	b, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	store := docstore.New(b, docstore.WithRules(access.Rules{}))
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	aw := audit.NewWriter(store, clk, zerolog.Nop())
	ids := identity.New(store, clk, 0, zerolog.Nop())
	tr := tracker.New(tracker.Deps{
		Store:     store,
		Exec:      mutation.NewExecutor(store, aw, clk, zerolog.Nop()),
		Audit:     aw,
		Identity:  ids,
		Clock:     clk,
		UploadDir: t.TempDir(),
		Logger:    zerolog.Nop(),
	})
	srv := New(Deps{
		Tracker:  tr,
		Identity: ids,
		Admin:    admin.New(ids, store, clk, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, tracker: tr}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) signUp(t *testing.T, name string) (string, domain.UserProfile) {
	t.Helper()
	resp := ts.do(t, "POST", "/api/auth/signup", "", signUpRequest{
		Email:       strings.ToLower(name) + "@example.com",
		Password:    "password123",
		DisplayName: name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := readJSON[sessionResponse](t, resp)
	require.NotEmpty(t, out.Token)
	return out.Token, out.User
}

func (ts *testServer) project(t *testing.T, token, name string) domain.Project {
	t.Helper()
	resp := ts.do(t, "POST", "/api/projects", token, tracker.ProjectInput{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return readJSON[domain.Project](t, resp)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, "GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, "GET", "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, user := ts.signUp(t, "Ada")
	assert.Equal(t, domain.RoleMember, user.Role)

	resp = ts.do(t, "GET", "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, readJSON[domain.UserProfile](t, resp).ID)

	resp = ts.do(t, "POST", "/api/auth/signin", "", signInRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, "POST", "/api/auth/signup", "", signUpRequest{Email: "ADA@example.com", Password: "password123"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, "POST", "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, "GET", "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp(t, "Ada")
	outsider, _ := ts.signUp(t, "Eve")
	p := ts.project(t, token, "Apollo")

	resp := ts.do(t, "POST", "/api/projects/"+p.ID+"/tasks", token, tracker.TaskInput{Title: "Wire the API"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := readJSON[domain.Task](t, resp)
	assert.Equal(t, domain.TaskBacklog, task.Status)

	cs, err := EncodeChanges(domain.SetTaskStatus{Status: domain.TaskDone})
	require.NoError(t, err)
	resp = ts.do(t, "PATCH", "/api/tasks/"+task.ID, token, cs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(AuditErrorHeader))
	updated := readJSON[domain.Task](t, resp)
	assert.Equal(t, domain.TaskDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	resp = ts.do(t, "PATCH", "/api/tasks/"+task.ID, token, ChangeSet{Changes: []FieldChange{
		{Field: "createdBy", Value: json.RawMessage(`"x"`)},
	}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, "PATCH", "/api/tasks/"+task.ID, token, ChangeSet{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/tasks/"+task.ID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/tasks/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/projects/"+p.ID+"/tasks?status=done", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, readJSON[[]domain.Task](t, resp), 1)
}

func TestProjectBySlugAndMembers(t *testing.T) {
	ts := newTestServer(t)
	owner, _ := ts.signUp(t, "Ada")
	member, bob := ts.signUp(t, "Bob")
	p := ts.project(t, owner, "Apollo Launch")

	resp := ts.do(t, "GET", "/api/projects/"+p.Slug, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, p.ID, readJSON[domain.Project](t, resp).ID)

	resp = ts.do(t, "POST", "/api/projects/"+p.ID+"/members", owner, addMemberRequest{Email: "bob@example.com"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, "POST", "/api/projects/"+p.ID+"/members", member, addMemberRequest{Email: "ada@example.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/projects", member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, readJSON[[]domain.Project](t, resp), 1)

	resp = ts.do(t, "DELETE", "/api/projects/"+p.ID+"/members/"+bob.ID, owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/projects", member, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readJSON[[]domain.Project](t, resp))
}

func TestUpdateUserCallable(t *testing.T) {
	ts := newTestServer(t)
	token, ada := ts.signUp(t, "Ada")
	_, bob := ts.signUp(t, "Bob")

	req := callableRequest{Data: admin.Request{UID: bob.ID, Email: "robert@example.com", DisplayName: "Robert", Role: "admin"}}

	resp := ts.do(t, "POST", "/functions/updateUser", "", req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, "POST", "/functions/updateUser", token, req)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	out := readJSON[callableResult](t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, admin.PermissionDenied, out.Error.Kind)

	_, err := ts.tracker.PromoteAdmin(context.Background(), "ada@example.com")
	require.NoError(t, err)

	resp = ts.do(t, "POST", "/functions/updateUser", token, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = readJSON[callableResult](t, resp)
	require.NotNil(t, out.Result)
	assert.Equal(t, "User updated successfully", out.Result.Message)

	resp = ts.do(t, "GET", "/api/users/"+bob.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := readJSON[domain.UserProfile](t, resp)
	assert.Equal(t, "robert@example.com", profile.Email)
	assert.Equal(t, domain.RoleAdmin, profile.Role)

	req.Data.UID = ada.ID
	resp = ts.do(t, "POST", "/functions/updateUser", token, req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	out = readJSON[callableResult](t, resp)
	assert.Equal(t, admin.AlreadyExists, out.Error.Kind)
}

func TestUpdateUserChecksSignInBeforeBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/functions/updateUser", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	out := readJSON[callableResult](t, resp)
	require.NotNil(t, out.Error)
	assert.Equal(t, admin.Unauthenticated, out.Error.Kind)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp(t, "Ada")

	for _, path := range []string{"/api/users", "/api/audit"} {
		resp := ts.do(t, "GET", path, token, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	_, err := ts.tracker.PromoteAdmin(context.Background(), "ada@example.com")
	require.NoError(t, err)
	ts.project(t, token, "Apollo")

	resp := ts.do(t, "GET", "/api/audit?entity=project", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := readJSON[[]domain.AuditLog](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "Ada", entries[0].UserName)

	resp = ts.do(t, "GET", "/api/audit?limit=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWikiEditKeepsHistory(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp(t, "Ada")

	resp := ts.do(t, "POST", "/api/wiki", token, wikiRequest{Title: "Release Process", Content: "v1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	page := readJSON[domain.WikiPage](t, resp)

	resp = ts.do(t, "PUT", "/api/wiki/"+page.Slug, token, wikiRequest{Title: page.Title, Content: "v2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "v2", readJSON[domain.WikiPage](t, resp).Content)

	resp = ts.do(t, "PUT", "/api/wiki/"+page.Slug, token, wikiRequest{Title: page.Title, Content: "v2"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, "GET", "/api/wiki/"+page.Slug+"/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	versions := readJSON[[]domain.WikiPageVersion](t, resp)
	require.Len(t, versions, 1)
	assert.Equal(t, "v1", versions[0].Content)
}

func TestAttachmentRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp(t, "Ada")
	p := ts.project(t, token, "Apollo")
	resp := ts.do(t, "POST", "/api/projects/"+p.ID+"/bugs", token, tracker.BugInput{Title: "Crash on launch"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bug := readJSON[domain.Bug](t, resp)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "trace.log")
	require.NoError(t, err)
	part.Write([]byte("stack trace"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", ts.URL+"/api/bugs/"+bug.ID+"/attachments", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	up, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer up.Body.Close()
	require.Equal(t, http.StatusCreated, up.StatusCode)
	att := readJSON[domain.Attachment](t, up)

	resp = ts.do(t, "GET", "/api/bugs/"+bug.ID, token, nil)
	assert.Equal(t, att.URL(), readJSON[domain.Bug](t, resp).EvidenceURL)

	resp = ts.do(t, "GET", att.URL(), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "trace.log")
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "stack trace", string(got))
}

func TestCommentStream(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signUp(t, "Ada")
	p := ts.project(t, token, "Apollo")
	resp := ts.do(t, "POST", "/api/projects/"+p.ID+"/tasks", token, tracker.TaskInput{Title: "Discuss"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := readJSON[domain.Task](t, resp)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/tasks/" + task.ID + "/comments/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()

	resp = ts.do(t, "POST", "/api/tasks/"+task.ID+"/comments", token, commentRequest{Text: "looks good"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var c domain.Comment
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, "looks good", c.Text)
	assert.Equal(t, "Ada", c.UserName)

	_, _, err = websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
}
