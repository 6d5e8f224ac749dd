package adapters

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
	"github.com/hyperterse/tablescope/core/shared/redact"
)

// fail classifies a backend error for operation op. AppErrors pass through
// untouched; everything else is scrubbed of the session password first.
func (a *sqlAdapter) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	code, ok := a.d.classify(err)
	if !ok {
		code = classifyTransport(err)
	}
	return wrapClassified(string(a.d.kind()), op, code, err, a.desc.Password)
}

// classifyTransport recognizes connection-level faults common to all drivers.
func classifyTransport(err error) apperrors.ErrorCode {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return apperrors.ErrCodeConnectFailed
	}
	return apperrors.ErrCodeBackendError
}

func wrapClassified(backend, op string, code apperrors.ErrorCode, err error, secret string) error {
	scrubbed := errors.New(redact.Scrub(err.Error(), secret))
	switch code {
	case apperrors.ErrCodeConnectFailed:
		return apperrors.ConnectFailed(backend, scrubbed)
	case apperrors.ErrCodeObjectNotFound:
		return apperrors.NewAppError(apperrors.ErrCodeObjectNotFound, op+": object not found", scrubbed)
	default:
		return apperrors.BackendError(op, scrubbed)
	}
}

// containsAny reports whether msg contains any of the lower-case needles.
func containsAny(msg string, needles ...string) bool {
	msg = strings.ToLower(msg)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}
