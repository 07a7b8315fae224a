package model

import "time"

// Session stores the authenticated identity of one Telegram chat.
type Session struct {
	ID                uint  `gorm:"primaryKey"`
	ChatID            int64 `gorm:"uniqueIndex"`
	Token             string
	UserID            string
	IsAdmin           bool `gorm:"default:false"`
	Username          string
	Email             string
	Name              string
	ProfilePictureURL string
	ActiveUserID      string
	ExpiresAt         *time.Time `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CurrentUser is the logged-in backend user.
func (s *Session) CurrentUser() string {
	return s.UserID
}

// ViewedUser is the user whose boards are being viewed. Non-admins always
// view their own.
func (s *Session) ViewedUser() string {
	if !s.IsAdmin || s.ActiveUserID == "" {
		return s.UserID
	}
	return s.ActiveUserID
}

func (s *Session) Admin() bool {
	return s.IsAdmin
}

func (s *Session) BearerToken() string {
	return s.Token
}

// Expired reports whether the token expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
