package handlers

import (
	"net/http"
	"strings"

	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

const (
	SessionCookie = "session_id"
	SessionHeader = "X-Session-ID"
)

// SessionToken reads the session token from the cookie, falling back to the
// header.
func SessionToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value), nil
	}
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v, nil
	}
	return "", apperrors.NewAppError(apperrors.ErrCodeSessionNotFound, "session id required", nil)
}

func setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
