package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban-planner/internal/model"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
	Header http.Header
}

func newTestServer(t *testing.T, status int, response string) (*Client, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  map[string]string{},
			Header: r.Header.Clone(),
		}
		for key := range r.URL.Query() {
			rec.Query[key] = r.URL.Query().Get(key)
		}
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		seen = append(seen, rec)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", time.Second), &seen
}

func TestClientSendsBearerAndRequestID(t *testing.T) {
	client, seen := newTestServer(t, http.StatusOK, `[{"id":"b1","name":"Work","ownerUserId":"u1"}]`)

	boards, err := client.WithToken("tok").ListBoards(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "Work", boards[0].Name)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/boards/user/u1", req.Path)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
}

func TestWithTokenDoesNotMutateBase(t *testing.T) {
	client, seen := newTestServer(t, http.StatusOK, `[]`)
	_ = client.WithToken("tok")

	_, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, (*seen)[0].Header.Get("Authorization"))
}

func TestTaskEndpointsShape(t *testing.T) {
	ctx := context.Background()
	status := model.StatusDone
	remark := "all tests green"

	tests := []struct {
		name   string
		call   func(c *Client) error
		method string
		path   string
		query  map[string]string
		body   map[string]any
	}{
		{
			name: "create",
			call: func(c *Client) error {
				return c.CreateTask(ctx, "admin", "u1", "b1", model.NewTask{
					Title: "T", Description: "D",
					Deadline: model.NewTimestamp(time.Date(2030, 5, 1, 8, 0, 0, 0, time.Local)),
					Priority: model.PriorityLow,
				})
			},
			method: http.MethodPost,
			path:   "/api/tasks",
			query:  map[string]string{"creatorId": "admin", "userId": "u1", "boardId": "b1"},
			body:   map[string]any{"title": "T", "description": "D", "deadline": "2030-05-01T08:00", "priority": "LOW"},
		},
		{
			name: "patch status",
			call: func(c *Client) error {
				return c.PatchTask(ctx, "t1", "u1", model.TaskPatch{Status: &status, CompletionRemark: &remark})
			},
			method: http.MethodPatch,
			path:   "/api/tasks/t1",
			query:  map[string]string{"userId": "u1"},
			body:   map[string]any{"status": "DONE", "completionRemark": "all tests green"},
		},
		{
			name: "override",
			call: func(c *Client) error {
				return c.OverrideStatus(ctx, "t1", "admin", "u1", model.StatusOverride{Status: model.StatusTodo, CompletionRemark: "fixing a bug"})
			},
			method: http.MethodPatch,
			path:   "/api/tasks/t1/override-status",
			query:  map[string]string{"adminId": "admin", "userId": "u1"},
			body:   map[string]any{"status": "TODO", "completionRemark": "fixing a bug"},
		},
		{
			name: "review",
			call: func(c *Client) error {
				return c.ReviewTask(ctx, "t1", "admin", "u1", false, "needs tests")
			},
			method: http.MethodPatch,
			path:   "/api/tasks/t1/review",
			query:  map[string]string{"adminId": "admin", "userId": "u1", "approved": "false", "remark": "needs tests"},
		},
		{
			name: "edit",
			call: func(c *Client) error {
				return c.EditTask(ctx, "t1", model.TaskEdit{
					Title: "New", Description: "Desc",
					Deadline: model.NewTimestamp(time.Date(2030, 5, 1, 8, 0, 0, 0, time.Local)),
					Priority: model.PriorityHigh,
				})
			},
			method: http.MethodPatch,
			path:   "/api/tasks/t1",
			query:  map[string]string{},
			body:   map[string]any{"title": "New", "description": "Desc", "deadline": "2030-05-01T08:00", "priority": "HIGH"},
		},
		{
			name:   "delete",
			call:   func(c *Client) error { return c.DeleteTask(ctx, "t1", "u1", "admin") },
			method: http.MethodDelete,
			path:   "/api/tasks/t1",
			query:  map[string]string{"userId": "u1", "adminId": "admin"},
		},
		{
			name:   "columns",
			call:   func(c *Client) error { _, err := c.ListColumns(ctx, "u1", "b1"); return err },
			method: http.MethodGet,
			path:   "/api/columns",
			query:  map[string]string{"userId": "u1", "boardId": "b1"},
		},
		{
			name:   "create board",
			call:   func(c *Client) error { return c.CreateBoard(ctx, "u1", "Home") },
			method: http.MethodPost,
			path:   "/api/boards",
			query:  map[string]string{"userId": "u1"},
			body:   map[string]any{"name": "Home"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, seen := newTestServer(t, http.StatusOK, "")
			require.NoError(t, tt.call(client))
			require.Len(t, *seen, 1)

			req := (*seen)[0]
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.path, req.Path)
			if tt.query != nil {
				assert.Equal(t, tt.query, req.Query)
			}
			if tt.body != nil {
				assert.Equal(t, tt.body, req.Body)
			}
		})
	}
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "plain text", body: "WIP limit reached", want: "WIP limit reached"},
		{name: "json string", body: `"WIP limit reached"`, want: "WIP limit reached"},
		{name: "message field", body: `{"message":"Title is required","error":"Bad Request"}`, want: "Title is required"},
		{name: "empty message falls to error", body: `{"message":"","error":"Bad Request"}`, want: "Bad Request"},
		{name: "raw json", body: `{"status":400}`, want: `{"status":400}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestServer(t, http.StatusBadRequest, tt.body)
			err := client.CreateBoard(context.Background(), "u1", "x")

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, tt.want, Message(err, "Failed to create board"))
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(srv.URL, time.Second)
	_, err := client.ListBoards(context.Background(), "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Failed to load boards", Message(err, "Failed to load boards"))
}

func TestIsApprovedLocked(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "substring", err: &Error{Status: 409, Message: "Task is approved and locked by admin"}, want: true},
		{name: "code", err: &Error{Status: 409, Code: CodeApprovedLocked, Message: "locked"}, want: true},
		{name: "other code wins over text", err: &Error{Status: 409, Code: "WIP_LIMIT", Message: "approved and locked"}, want: false},
		{name: "case sensitive", err: &Error{Status: 409, Message: "Approved And Locked"}, want: false},
		{name: "wrapped", err: errors.Join(errors.New("ctx"), &Error{Message: "approved and locked"}), want: true},
		{name: "transport", err: ErrTransport, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsApprovedLocked(tt.err))
		})
	}
}

func TestLoginResponses(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    LoginResult
		wantErr bool
	}{
		{name: "plain token", body: "abc.def.ghi", want: LoginResult{Token: "abc.def.ghi"}},
		{name: "json string token", body: `"abc.def.ghi"`, want: LoginResult{Token: "abc.def.ghi"}},
		{
			name: "object",
			body: `{"token":"t","userId":"u1","isAdmin":true,"username":"ann"}`,
			want: LoginResult{Token: "t", UserID: "u1", IsAdmin: true, Username: "ann"},
		},
		{
			name: "object with id and admin",
			body: `{"token":"t","id":"u2","admin":true}`,
			want: LoginResult{Token: "t", UserID: "u2", IsAdmin: true},
		},
		{name: "empty", body: "", wantErr: true},
		{name: "object without token", body: `{"userId":"u1"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, seen := newTestServer(t, http.StatusOK, tt.body)
			got, err := client.Login(context.Background(), Credentials{Username: "ann", Password: "pw"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, map[string]any{"username": "ann", "password": "pw"}, (*seen)[0].Body)
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	client, _ := newTestServer(t, http.StatusUnauthorized, `{"error":"Unauthorized"}`)
	_, err := client.ListUsers(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsUnauthorized(ErrTransport))
}
