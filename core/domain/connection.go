package domain

import (
	"fmt"
	"strings"

	"github.com/hyperterse/tablescope/core/shared/redact"
)

// ConnectionDescriptor holds everything needed to reach one backend. It only
// ever lives in the cache store under a session token.
type ConnectionDescriptor struct {
	Server   string      `json:"server"`
	Database string      `json:"database"`
	User     string      `json:"user"`
	Password string      `json:"password"`
	Port     int         `json:"port"`
	Kind     BackendKind `json:"db_type"`
}

// Validate checks the descriptor is complete enough to attempt a connection.
func (d ConnectionDescriptor) Validate() error {
	if _, err := ParseBackendKind(string(d.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(d.Database) == "" {
		return ErrEmptyDatabase
	}
	if d.Kind != KindSQLite && strings.TrimSpace(d.Server) == "" {
		return ErrEmptyServer
	}
	if d.Port < 0 || d.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// Normalize canonicalizes the backend kind alias.
func (d ConnectionDescriptor) Normalize() ConnectionDescriptor {
	if kind, err := ParseBackendKind(string(d.Kind)); err == nil {
		d.Kind = kind
	}
	d.Server = strings.TrimSpace(d.Server)
	return d
}

// EffectivePort falls back to the kind's default port when none was given.
func (d ConnectionDescriptor) EffectivePort() int {
	if d.Port == 0 {
		return d.Kind.DefaultPort()
	}
	return d.Port
}

// Redacted returns a copy safe to hand back to clients.
func (d ConnectionDescriptor) Redacted() ConnectionDescriptor {
	d.Password = ""
	return d
}

func (d ConnectionDescriptor) String() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s (password=%s)",
		d.Kind, d.User, d.Server, d.EffectivePort(), d.Database, redact.Secret(d.Password))
}

func (d ConnectionDescriptor) GoString() string {
	return d.String()
}
