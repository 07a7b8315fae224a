package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
)

// BoardListService lists and creates boards for the active user.
type BoardListService struct {
	backend  BackendFactory
	sessions SessionStore
}

func NewBoardListService(backend BackendFactory, sessions SessionStore) *BoardListService {
	return &BoardListService{backend: backend, sessions: sessions}
}

// ListBoards fails soft: on error it returns an empty list alongside the error.
func (s *BoardListService) ListBoards(ctx context.Context, ident Identity) ([]model.Board, error) {
	boards, err := s.backend(ident.BearerToken()).ListBoards(ctx, ident.ViewedUser())
	if err != nil {
		return []model.Board{}, fmt.Errorf("list boards: %w", err)
	}
	if boards == nil {
		boards = []model.Board{}
	}
	return boards, nil
}

// CreateBoard rejects blank names locally, then reloads the list.
func (s *BoardListService) CreateBoard(ctx context.Context, ident Identity, name string) ([]model.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}
	if err := s.backend(ident.BearerToken()).CreateBoard(ctx, ident.ViewedUser(), name); err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	log.Printf("[info] board %q created for user=%s", name, ident.ViewedUser())
	return s.ListBoards(ctx, ident)
}

func (s *BoardListService) ListUsers(ctx context.Context, ident Identity) ([]model.User, error) {
	if !ident.Admin() {
		return nil, ErrAdminOnly
	}
	users, err := s.backend(ident.BearerToken()).ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SwitchActiveUser points an admin's session at another user, then reloads
// the board list and, when a board is open, its columns. Each reload runs
// once and is scoped to the new user.
func (s *BoardListService) SwitchActiveUser(ctx context.Context, session *model.Session, userID string, open *BoardView) ([]model.Board, error) {
	if !session.Admin() {
		return nil, ErrAdminOnly
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("switch active user: %w", ErrMissingFields)
	}

	if err := s.sessions.SetActiveUser(ctx, session.ChatID, userID); err != nil {
		return nil, err
	}
	session.ActiveUserID = userID
	log.Printf("[info] chat=%d active user -> %s", session.ChatID, userID)

	boards, err := s.ListBoards(ctx, session)
	if open != nil {
		open.Rebind(session)
		if loadErr := open.Load(ctx); loadErr != nil {
			log.Printf("reload board %s after switch: %v", open.BoardID(), loadErr)
		}
	}
	return boards, err
}

// BoardsErrorMessage renders a board list failure.
func BoardsErrorMessage(err error) string {
	return api.Message(err, "Failed to load boards")
}
