package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion records the build version reported by --version and the API.
func SetVersion(v string) { version = v }

func GetVersion() string { return version }

// Flag targets shared by the subcommands. Tests reset them between runs.
var (
	configFile  string
	port        string
	logLevel    int
	verbose     bool
	logTags     string
	logFile     bool
	watchConfig bool
	profileName string
	showVersion bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tablescope",
		Short: "Browse and edit relational and document databases over HTTP",
		Long: `tablescope serves a session-based HTTP API for inspecting and editing
PostgreSQL, MySQL, SQL Server, Oracle, SQLite and MongoDB databases.

Clients open a session with POST /api/connect; every later request carries
the session id in a cookie or the X-Session-ID header. Metadata and pages
are cached in Redis or in memory.

Configuration is read from --config, or ./tablescope.yaml when present, and
may reference variables from .env files with {{ env.NAME }}.`,
		Example: `  tablescope serve --config tablescope.yaml --port 8080
  tablescope check --profile reporting
  tablescope sessions list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// cobra's generated completion command stays available but unlisted.
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			}
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./tablescope.yaml when present)")
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "print the version and exit")
	return root
}

// Execute runs the command named on the command line.
func Execute() error {
	return rootCmd.Execute()
}

var envFileNames = []string{".env.local", ".env.development", ".env"}

// LoadEnvFiles loads the first env file found, looking in fromDir, then the
// working directory, then next to the binary. Variables already present in
// the process environment win. It returns the loaded path, or "" if none.
func LoadEnvFiles(fromDir string) string {
	for _, dir := range envSearchDirs(fromDir) {
		for _, name := range envFileNames {
			path := filepath.Join(dir, name)
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func envSearchDirs(fromDir string) []string {
	var dirs []string
	if fromDir != "" {
		dirs = append(dirs, fromDir)
	}
	dirs = append(dirs, ".")
	exe, err := os.Executable()
	if err != nil {
		return dirs
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return append(dirs, filepath.Dir(exe))
}
