package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kanban-planner/internal/api"
	"kanban-planner/internal/model"
	"kanban-planner/internal/repository"
)

// RegisterInput is the registration form.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Admin           bool
}

// AuthService exchanges credentials for chat sessions.
type AuthService struct {
	backend  BackendFactory
	sessions SessionStore
	now      func() time.Time
}

func NewAuthService(backend BackendFactory, sessions SessionStore) *AuthService {
	return &AuthService{backend: backend, sessions: sessions, now: time.Now}
}

// Login authenticates against the backend and stores the chat's session.
func (s *AuthService) Login(ctx context.Context, chatID int64, identifier, password string) (*model.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrMissingFields)
	}

	res, err := s.backend("").Login(ctx, api.Credentials{Username: identifier, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	session := &model.Session{
		ChatID:            chatID,
		Token:             res.Token,
		UserID:            res.UserID,
		IsAdmin:           res.IsAdmin,
		Username:          res.Username,
		Email:             res.Email,
		Name:              res.Name,
		ProfilePictureURL: res.ProfilePictureURL,
	}

	if claims, err := ParseTokenClaims(res.Token); err == nil {
		session.UserID = firstNonEmpty(session.UserID, claims.UserID)
		session.Username = firstNonEmpty(session.Username, claims.Username)
		session.Email = firstNonEmpty(session.Email, claims.Email)
		session.Name = firstNonEmpty(session.Name, claims.Name)
		session.IsAdmin = session.IsAdmin || claims.Admin
		session.ExpiresAt = claims.ExpiresAt
	} else {
		log.Printf("[info] login token for chat=%d is not a JWT: %v", chatID, err)
	}

	session.Username = firstNonEmpty(session.Username, identifier)
	if session.UserID == "" {
		return nil, ErrNoUserID
	}
	session.ActiveUserID = session.UserID

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	log.Printf("[info] login chat=%d user=%s admin=%t", chatID, session.UserID, session.IsAdmin)
	return session, nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return fmt.Errorf("username and password are required: %w", ErrMissingFields)
	}
	if input.Password != input.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := s.backend("").Register(ctx, api.Registration{
		Username: username,
		Password: input.Password,
		Admin:    input.Admin,
	}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Printf("[info] registered user %q admin=%t", username, input.Admin)
	return nil
}

// Logout clears every key of the chat's session.
func (s *AuthService) Logout(ctx context.Context, chatID int64) error {
	return s.sessions.Delete(ctx, chatID)
}

// Session returns the chat's live session. Expired sessions are removed.
func (s *AuthService) Session(ctx context.Context, chatID int64) (*model.Session, error) {
	session, err := s.sessions.FindByChatID(ctx, chatID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, chatID); err != nil {
			return nil, err
		}
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

// PurgeExpired drops sessions whose token has expired.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Printf("[info] purged %d expired sessions", removed)
	}
	return removed, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
