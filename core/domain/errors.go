package domain

// DomainError represents a domain-level error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Domain errors
var (
	ErrEmptyDatabase    = &DomainError{Message: "database cannot be empty"}
	ErrEmptyServer      = &DomainError{Message: "server cannot be empty"}
	ErrInvalidPort      = &DomainError{Message: "port must be between 0 and 65535"}
	ErrEmptyTable       = &DomainError{Message: "table cannot be empty"}
	ErrInvalidPage      = &DomainError{Message: "page must be >= 1"}
	ErrInvalidPageSize  = &DomainError{Message: "page_size must be between 1 and 1000"}
	ErrUnknownBackend   = &DomainError{Message: "unsupported database type"}
	ErrEmptyRecordID    = &DomainError{Message: "record id cannot be empty"}
	ErrEmptyColumnName  = &DomainError{Message: "column cannot be empty"}
	ErrEmptyInsertValue = &DomainError{Message: "record data cannot be empty"}
)
