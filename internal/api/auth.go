package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// LoginResult is what the backend returned for a successful login. Backends
// that answer with a bare token leave everything but Token empty.
type LoginResult struct {
	Token             string `json:"token"`
	UserID            string `json:"userId"`
	IsAdmin           bool   `json:"isAdmin"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	body, err := c.send(ctx, http.MethodPost, "/auth/login", nil, creds)
	if err != nil {
		return LoginResult{}, err
	}
	return parseLogin(body)
}

func parseLogin(body []byte) (LoginResult, error) {
	var result LoginResult
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return result, fmt.Errorf("login: empty response")
	}

	switch trimmed[0] {
	case '{':
		var payload struct {
			LoginResult
			ID    string `json:"id"`
			Admin *bool  `json:"admin"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return result, fmt.Errorf("decode login: %w", err)
		}
		result = payload.LoginResult
		if result.UserID == "" {
			result.UserID = payload.ID
		}
		if payload.Admin != nil && !result.IsAdmin {
			result.IsAdmin = *payload.Admin
		}
	case '"':
		if err := json.Unmarshal(trimmed, &result.Token); err != nil {
			return result, fmt.Errorf("decode login: %w", err)
		}
	default:
		result.Token = string(trimmed)
	}

	result.Token = strings.TrimSpace(result.Token)
	if result.Token == "" {
		return result, fmt.Errorf("login: response carries no token")
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) error {
	return c.do(ctx, http.MethodPost, "/auth/register", nil, reg, nil)
}
