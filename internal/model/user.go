package model

import "strings"

// User is an account known to the backend.
type User struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	IsAdmin           bool   `json:"admin"`
}

// DisplayName prefers the full name, then username, then email.
func (u User) DisplayName() string {
	for _, v := range []string{u.Name, u.Username, u.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return u.ID
}
