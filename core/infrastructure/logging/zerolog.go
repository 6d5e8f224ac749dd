package logging

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/shared/redact"
)

const (
	LogLevelError = 1
	LogLevelWarn  = 2
	LogLevelInfo  = 3
	LogLevelDebug = 4
)

const logDir = "/tmp/.tablescope/logs"

var (
	globalLogLevel = LogLevelInfo
	logLevelMutex  sync.RWMutex

	tagFilter      []string
	tagFilterMutex sync.RWMutex

	logFile      *os.File
	logFileMutex sync.Mutex
	logWriter    io.Writer = os.Stdout
)

// Logger is the interface exported from this package
type Logger = interfaces.Logger

// SetLogLevel sets the global log level
func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if level >= LogLevelError && level <= LogLevelDebug {
		globalLogLevel = level
		zerolog.SetGlobalLevel(convertLogLevel(level))
	}
}

// GetLogLevel returns the current global log level
func GetLogLevel() int {
	logLevelMutex.RLock()
	defer logLevelMutex.RUnlock()
	return globalLogLevel
}

// ParseLogLevel accepts either a number (1-4) or a level name.
func ParseLogLevel(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "error":
		return LogLevelError, true
	case "2", "warn", "warning":
		return LogLevelWarn, true
	case "3", "info":
		return LogLevelInfo, true
	case "4", "debug":
		return LogLevelDebug, true
	}
	return 0, false
}

// LevelName is the inverse of ParseLogLevel.
func LevelName(level int) string {
	switch level {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	}
	return "info"
}

// SetTagFilter sets the tag filter from a comma-separated string. A leading
// "-" excludes a tag and its sub-tags.
func SetTagFilter(filterStr string) {
	tagFilterMutex.Lock()
	defer tagFilterMutex.Unlock()

	if filterStr == "" {
		tagFilter = nil
		return
	}

	tags := strings.Split(filterStr, ",")
	tagFilter = make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tagFilter = append(tagFilter, tag)
		}
	}
}

func matchesTag(tag, filter string) bool {
	return tag == filter || strings.HasPrefix(tag, filter+":")
}

// shouldLogTag checks if a tag should be logged based on the filter
func shouldLogTag(tag string) bool {
	tagFilterMutex.RLock()
	defer tagFilterMutex.RUnlock()

	if len(tagFilter) == 0 {
		return true
	}

	hasInclusion := false
	included := false
	for _, filterTag := range tagFilter {
		if excluded, ok := strings.CutPrefix(filterTag, "-"); ok {
			if matchesTag(tag, excluded) {
				return false
			}
			continue
		}
		hasInclusion = true
		if matchesTag(tag, filterTag) {
			included = true
		}
	}
	return included || !hasInclusion
}

// SetLogFile tees output into a fresh file under /tmp/.tablescope/logs.
func SetLogFile() (string, error) {
	logFileMutex.Lock()
	defer logFileMutex.Unlock()

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}

	filePath := filepath.Join(logDir, "tablescope-"+logFileHash()+".log")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", err
	}

	logFile = file
	logWriter = io.MultiWriter(os.Stdout, file)
	return filePath, nil
}

// CloseLogFile closes the log file if it's open
func CloseLogFile() error {
	logFileMutex.Lock()
	defer logFileMutex.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	logWriter = os.Stdout
	return err
}

func logFileHash() string {
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	sum := sha256.Sum256(fmt.Appendf(nil, "%d-%d-%x", time.Now().UnixNano(), os.Getpid(), randomBytes))
	return hex.EncodeToString(sum[:])[:8]
}

// ZerologLogger implements the Logger interface using zerolog
type ZerologLogger struct {
	tag    string
	logger zerolog.Logger
}

// New creates a logger for a tag such as "adapter:postgresql". Filtered tags
// get a no-op logger.
func New(tag string) Logger {
	if !shouldLogTag(tag) {
		return noOpLogger{}
	}

	logFileMutex.Lock()
	var output io.Writer = logWriter
	logFileMutex.Unlock()

	if isInteractive() {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "2006-01-02T15:04:05.000Z"}
	}

	return &ZerologLogger{
		tag:    tag,
		logger: zerolog.New(output).With().Str("tag", tag).Timestamp().Logger(),
	}
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func convertLogLevel(level int) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func enabled(level int) bool {
	logLevelMutex.RLock()
	defer logLevelMutex.RUnlock()
	return level <= globalLogLevel
}

func (l *ZerologLogger) Error(message string) {
	if enabled(LogLevelError) {
		l.logger.Error().Msg(message)
	}
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	if enabled(LogLevelError) {
		l.logger.Error().Msgf(format, args...)
	}
}

func (l *ZerologLogger) Warn(message string) {
	if enabled(LogLevelWarn) {
		l.logger.Warn().Msg(message)
	}
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	if enabled(LogLevelWarn) {
		l.logger.Warn().Msgf(format, args...)
	}
}

func (l *ZerologLogger) Info(message string) {
	if enabled(LogLevelInfo) {
		l.logger.Info().Msg(message)
	}
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	if enabled(LogLevelInfo) {
		l.logger.Info().Msgf(format, args...)
	}
}

func (l *ZerologLogger) Success(message string) {
	l.logger.WithLevel(zerolog.NoLevel).Str("status", "ok").Msg(message)
}

func (l *ZerologLogger) Successf(format string, args ...any) {
	l.logger.WithLevel(zerolog.NoLevel).Str("status", "ok").Msgf(format, args...)
}

func (l *ZerologLogger) Debug(message string) {
	if enabled(LogLevelDebug) {
		l.logger.Debug().Msg(message)
	}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	if enabled(LogLevelDebug) {
		l.logger.Debug().Msgf(format, args...)
	}
}

func (l *ZerologLogger) PrintError(title string, err error) {
	if err == nil || !enabled(LogLevelError) {
		return
	}
	l.logger.Error().Str("error", redact.Mask(err.Error())).Msg(title)
}

// noOpLogger is a no-op logger for filtered tags
type noOpLogger struct{}

func (noOpLogger) Error(string)             {}
func (noOpLogger) Errorf(string, ...any)    {}
func (noOpLogger) Warn(string)              {}
func (noOpLogger) Warnf(string, ...any)     {}
func (noOpLogger) Info(string)              {}
func (noOpLogger) Infof(string, ...any)     {}
func (noOpLogger) Success(string)           {}
func (noOpLogger) Successf(string, ...any)  {}
func (noOpLogger) Debug(string)             {}
func (noOpLogger) Debugf(string, ...any)    {}
func (noOpLogger) PrintError(string, error) {}
