package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperterse/tablescope/core/cli/internal"
	"github.com/hyperterse/tablescope/core/config"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/runtime"
)

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:           "serve",
	Short:         "Serve the browsing API",
	RunE:          serve,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&port, "port", "p", "", "Server port (overrides config and PORT env var)")
	serveCmd.Flags().IntVar(&logLevel, "log-level", 0, "Log level: 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG (overrides config)")
	serveCmd.Flags().BoolVarP(&verbose, "verbose", "", false, "Enable verbose logging (sets log level to DEBUG)")
	serveCmd.Flags().StringVar(&logTags, "log-tags", "", "Filter logs by tags (comma-separated, use -tag to exclude). Overrides TABLESCOPE_LOG_TAGS env var")
	serveCmd.Flags().BoolVar(&logFile, "log-file", false, "Stream logs to file in /tmp/.tablescope/logs/")
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", false, "Reload log settings when the config file changes")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New("main")
	rt, err := runtime.NewRuntime(cmd.Context(), cfg, GetVersion(), runtime.WithConfigWatch(watchConfig))
	if err != nil {
		return err
	}
	log.Infof("Runtime initialized")
	return rt.Start()
}

// loadConfig reads .env files and the config file, then applies the
// command-line overrides and the resulting log settings.
func loadConfig() (*config.Config, error) {
	log := logging.New("config")

	dir := ""
	if configFile != "" {
		dir = filepath.Dir(configFile)
	}
	LoadEnvFiles(dir)

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, logging.WithTag("config", err)
	}

	internal.Overrides{
		Port:     port,
		LogLevel: logLevel,
		Verbose:  verbose,
		LogTags:  logTags,
		LogFile:  logFile,
	}.Apply(cfg)
	config.ApplyLogging(cfg)

	if cfg.Log.File {
		path, err := logging.SetLogFile()
		if err != nil {
			return nil, logging.WithTag("config", fmt.Errorf("failed to initialize log file: %w", err))
		}
		log.Infof("Log file: %s", path)
	}

	if cfg.Path != "" {
		log.Infof("Loaded %s", cfg.Path)
	} else {
		log.Debugf("No config file, using defaults")
	}
	return cfg, nil
}
