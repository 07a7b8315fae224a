package service

import (
	"context"
	"errors"
	"time"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrAdminOnly        = errors.New("admin only")
	ErrMissingFields    = errors.New("title, description and deadline are required")
	ErrDeadlinePast     = errors.New("deadline is in the past")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrRemarkRequired   = errors.New("remark is required")
	ErrRemarkTooLong    = errors.New("remark is limited to 20 words")
	ErrBlankName        = errors.New("name must not be blank")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoUserID         = errors.New("login response carries no user id")
)

// Identity is the session view services act for.
type Identity interface {
	CurrentUser() string
	// ViewedUser is the active user: the session user for non-admins.
	ViewedUser() string
	Admin() bool
	BearerToken() string
}

// Backend is the REST surface of the Kanban service.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (api.LoginResult, error)
	Register(ctx context.Context, reg api.Registration) error

	ListBoards(ctx context.Context, userID string) ([]model.Board, error)
	CreateBoard(ctx context.Context, userID, name string) error
	ListUsers(ctx context.Context) ([]model.User, error)

	ListColumns(ctx context.Context, userID, boardID string) ([]model.Column, error)
	CreateTask(ctx context.Context, creatorID, userID, boardID string, task model.NewTask) error
	PatchTask(ctx context.Context, taskID, userID string, patch model.TaskPatch) error
	OverrideStatus(ctx context.Context, taskID, adminID, userID string, override model.StatusOverride) error
	ReviewTask(ctx context.Context, taskID, adminID, userID string, approved bool, remark string) error
	EditTask(ctx context.Context, taskID string, edit model.TaskEdit) error
	DeleteTask(ctx context.Context, taskID, userID, adminID string) error
}

// BackendFactory returns a backend authenticated with token.
type BackendFactory func(token string) Backend

// NewBackendFactory adapts the REST client.
func NewBackendFactory(client *api.Client) BackendFactory {
	return func(token string) Backend {
		return client.WithToken(token)
	}
}

// SessionStore persists chat sessions.
type SessionStore interface {
	FindByChatID(ctx context.Context, chatID int64) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	SetActiveUser(ctx context.Context, chatID int64, userID string) error
	Delete(ctx context.Context, chatID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
