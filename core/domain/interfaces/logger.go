package interfaces

// Logger is the tagged logger used across the service.
type Logger interface {
	Error(message string)
	Errorf(format string, args ...any)

	Warn(message string)
	Warnf(format string, args ...any)

	Info(message string)
	Infof(format string, args ...any)

	// Success logs at INFO level but always shows regardless of log level
	Success(message string)
	Successf(format string, args ...any)

	Debug(message string)
	Debugf(format string, args ...any)

	// PrintError logs err under a title, masking credentials in its text.
	PrintError(title string, err error)
}
