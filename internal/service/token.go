package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what the client reads from the backend's JWT. The signature
// is not checked here; the backend verifies its own tokens.
type TokenClaims struct {
	Subject   string
	UserID    string
	Username  string
	Email     string
	Name      string
	Admin     bool
	ExpiresAt *time.Time
}

func ParseTokenClaims(token string) (TokenClaims, error) {
	var out TokenClaims
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return out, fmt.Errorf("parse token: %w", err)
	}

	out.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}

	out.UserID = stringClaim(claims, "userId", "uid", "id")
	if out.UserID == "" {
		out.UserID = out.Subject
	}
	out.Username = stringClaim(claims, "username", "preferred_username")
	out.Email = stringClaim(claims, "email")
	out.Name = stringClaim(claims, "name")
	out.Admin = adminClaim(claims)
	return out, nil
}

func stringClaim(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func adminClaim(claims jwt.MapClaims) bool {
	for _, key := range []string{"isAdmin", "admin"} {
		if v, ok := claims[key].(bool); ok && v {
			return true
		}
	}
	for _, key := range []string{"roles", "role", "authorities"} {
		switch v := claims[key].(type) {
		case string:
			if isAdminRole(v) {
				return true
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && isAdminRole(s) {
					return true
				}
			}
		}
	}
	return false
}

func isAdminRole(role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	return role == "ADMIN" || role == "ROLE_ADMIN"
}
