package dto

// HealthResponse represents a health check response
type HealthResponse struct {
	Success bool   `json:"success"`
	Cache   string `json:"cache,omitempty"`
}

// CacheStatsResponse carries the store's self-description.
type CacheStatsResponse struct {
	Success bool              `json:"success"`
	Stats   map[string]string `json:"stats"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// ValidationErrorResponse represents a validation error response
type ValidationErrorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message"`
	Code    string        `json:"code"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// MessageResponse acknowledges an operation without a payload.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
