package service

import (
	"context"
	"sync"
	"time"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
	"kanban-planner/internal/repository"
)

type call struct {
	Method string
	Args   []string
}

// fakeBackend emulates the Kanban REST backend in memory.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []call
	errs      map[string]error
	columns   map[string][]model.Column
	boards    map[string][]model.Board
	users     []model.User
	login     api.LoginResult
	patches   []model.TaskPatch
	overrides []model.StatusOverride
	created   []model.NewTask
	tokens    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		errs:    map[string]error{},
		columns: map[string][]model.Column{},
		boards:  map[string][]model.Board{},
	}
}

func (f *fakeBackend) factory() BackendFactory {
	return func(token string) Backend {
		f.mu.Lock()
		f.tokens = append(f.tokens, token)
		f.mu.Unlock()
		return f
	}
}

func (f *fakeBackend) record(method string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: method, Args: args})
	return f.errs[method]
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeBackend) callsOf(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) setErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// updateTask applies fn to the stored task in every user's columns.
func (f *fakeBackend) updateTask(taskID string, fn func(*model.Task)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, columns := range f.columns {
		for ci := range columns {
			for ti := range columns[ci].Tasks {
				if columns[ci].Tasks[ti].ID == taskID {
					fn(&columns[ci].Tasks[ti])
				}
			}
		}
	}
}

func (f *fakeBackend) Login(_ context.Context, creds api.Credentials) (api.LoginResult, error) {
	if err := f.record("Login", creds.Username); err != nil {
		return api.LoginResult{}, err
	}
	return f.login, nil
}

func (f *fakeBackend) Register(_ context.Context, reg api.Registration) error {
	return f.record("Register", reg.Username)
}

func (f *fakeBackend) ListBoards(_ context.Context, userID string) ([]model.Board, error) {
	if err := f.record("ListBoards", userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Board(nil), f.boards[userID]...), nil
}

func (f *fakeBackend) CreateBoard(_ context.Context, userID, name string) error {
	if err := f.record("CreateBoard", userID, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards[userID] = append(f.boards[userID], model.Board{ID: "new-" + name, Name: name, OwnerUserID: userID})
	return nil
}

func (f *fakeBackend) ListUsers(context.Context) ([]model.User, error) {
	if err := f.record("ListUsers"); err != nil {
		return nil, err
	}
	return f.users, nil
}

func (f *fakeBackend) ListColumns(_ context.Context, userID, boardID string) ([]model.Column, error) {
	if err := f.record("ListColumns", userID, boardID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.columns[userID]
	out := make([]model.Column, len(src))
	for i, column := range src {
		column.Tasks = append([]model.Task(nil), column.Tasks...)
		out[i] = column
	}
	return out, nil
}

func (f *fakeBackend) CreateTask(_ context.Context, creatorID, userID, boardID string, task model.NewTask) error {
	if err := f.record("CreateTask", creatorID, userID, boardID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, task)
	return nil
}

func (f *fakeBackend) PatchTask(_ context.Context, taskID, userID string, patch model.TaskPatch) error {
	if err := f.record("PatchTask", taskID, userID); err != nil {
		return err
	}
	f.mu.Lock()
	f.patches = append(f.patches, patch)
	f.mu.Unlock()
	f.updateTask(taskID, func(t *model.Task) {
		if patch.Status != nil {
			t.Status = *patch.Status
			if *patch.Status == model.StatusDone {
				t.ApprovalStatus = model.ApprovalPending
			}
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.CompletionRemark != nil {
			t.CompletionRemark = *patch.CompletionRemark
		}
	})
	return nil
}

func (f *fakeBackend) OverrideStatus(_ context.Context, taskID, adminID, userID string, override model.StatusOverride) error {
	if err := f.record("OverrideStatus", taskID, adminID, userID); err != nil {
		return err
	}
	f.mu.Lock()
	f.overrides = append(f.overrides, override)
	f.mu.Unlock()
	f.updateTask(taskID, func(t *model.Task) {
		t.Status = override.Status
		t.ApprovedReopened = true
		t.CompletionRemark = override.CompletionRemark
	})
	return nil
}

func (f *fakeBackend) ReviewTask(_ context.Context, taskID, adminID, userID string, approved bool, remark string) error {
	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	return f.record("ReviewTask", taskID, adminID, userID, verdict, remark)
}

func (f *fakeBackend) EditTask(_ context.Context, taskID string, edit model.TaskEdit) error {
	return f.record("EditTask", taskID, edit.Title)
}

func (f *fakeBackend) DeleteTask(_ context.Context, taskID, userID, adminID string) error {
	return f.record("DeleteTask", taskID, userID, adminID)
}

// fakeStore is an in-memory SessionStore.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[int64]model.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[int64]model.Session{}}
}

func (s *fakeStore) FindByChatID(_ context.Context, chatID int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[chatID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

func (s *fakeStore) Save(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ChatID] = *session
	return nil
}

func (s *fakeStore) SetActiveUser(_ context.Context, chatID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[chatID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.ActiveUserID = userID
	s.sessions[chatID] = session
	return nil
}

func (s *fakeStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

func (s *fakeStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for chatID, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed, nil
}
