package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// MaxBodyBytes bounds every JSON request body.
const MaxBodyBytes = 4 << 20

var validate = validator.New()

// FieldError is one failed struct tag.
type FieldError struct {
	Field string
	Tag   string
}

// RequestValidationError carries the per-field failures of a request body.
type RequestValidationError struct {
	*apperrors.AppError
	Fields []FieldError
}

func (e *RequestValidationError) Unwrap() error {
	return e.AppError
}

// DecodeJSON reads r's body into dst and validates it. Numbers decode as
// json.Number so integer ids and values keep their precision.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.ValidationFailed("request body is required")
		}
		return apperrors.ValidationFailed("invalid JSON: %v", err)
	}
	return ValidateStruct(dst)
}

// ValidateStruct applies the validator tags of s.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ValidationFailed("invalid request: %v", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Tag: fe.Tag()})
		names = append(names, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return &RequestValidationError{
		AppError: apperrors.ValidationFailed("validation failed: %s", strings.Join(names, ", ")),
		Fields:   fields,
	}
}
