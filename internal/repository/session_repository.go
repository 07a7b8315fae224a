package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kanban-planner/internal/model"
)

// ErrSessionNotFound means the chat has not logged in.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists one session per Telegram chat.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) FindByChatID(ctx context.Context, chatID int64) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&session).Error
	switch {
	case err == nil:
		return &session, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrSessionNotFound
	default:
		return nil, fmt.Errorf("find session: %w", err)
	}
}

// Save replaces every stored key of the chat's session.
func (r *SessionRepository) Save(ctx context.Context, session *model.Session) error {
	if session.ExpiresAt != nil {
		utc := session.ExpiresAt.UTC()
		session.ExpiresAt = &utc
	}
	db := r.db.WithContext(ctx)
	var existing model.Session
	err := db.Where("chat_id = ?", session.ChatID).First(&existing).Error
	switch {
	case err == nil:
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
		if err := db.Save(session).Error; err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		session.ID = 0
		if err := db.Create(session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("find session: %w", err)
	}
}

// SetActiveUser persists the admin's active-user selection.
func (r *SessionRepository) SetActiveUser(ctx context.Context, chatID int64, userID string) error {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("chat_id = ?", chatID).
		Update("active_user_id", userID)
	if res.Error != nil {
		return fmt.Errorf("set active user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes the chat's session with all its keys.
func (r *SessionRepository) Delete(ctx context.Context, chatID int64) error {
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions whose token expired before now. Expiry
// times are stored in UTC so the text comparison in SQLite holds.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
		Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
