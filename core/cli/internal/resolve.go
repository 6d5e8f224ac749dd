package internal

import (
	"github.com/hyperterse/tablescope/core/config"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

// Overrides are the command-line values that win over the config file.
type Overrides struct {
	Port     string
	LogLevel int
	Verbose  bool
	LogTags  string
	LogFile  bool
}

// Apply folds o into cfg. Empty and zero values leave cfg untouched.
func (o Overrides) Apply(cfg *config.Config) {
	if o.Port != "" {
		cfg.Server.Port = o.Port
	}
	if lvl := ResolveLogLevel(o.Verbose, o.LogLevel, cfg); lvl > 0 {
		cfg.Log.Level = logging.LevelName(lvl)
	}
	if o.LogTags != "" {
		cfg.Log.Tags = o.LogTags
	}
	if o.LogFile {
		cfg.Log.File = true
	}
}

// ResolveLogLevel resolves the log level from verbose flag, CLI flag, config file, or default
func ResolveLogLevel(verbose bool, cliLogLevel int, cfg *config.Config) int {
	if verbose {
		return logging.LogLevelDebug
	}
	if cliLogLevel >= logging.LogLevelError && cliLogLevel <= logging.LogLevelDebug {
		return cliLogLevel
	}
	if cfg != nil {
		return cfg.Log.LevelValue()
	}
	return logging.LogLevelInfo
}
