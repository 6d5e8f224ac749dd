package cmd

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, port, logTags, profileName = "", "", "", ""
	logLevel = 0
	verbose, logFile, watchConfig, showVersion = false, false, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	content := fmt.Sprintf(`cache:
  backend: memory
log:
  level: error
connections:
  - name: local
    type: sqlite
    database: %q
  - name: missing
    type: sqlite
    database: %q
`, dbPath, filepath.Join(dir, "absent", "none.db"))
	path := filepath.Join(dir, "tablescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newSQLiteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)`)
	require.NoError(t, err)
	return path
}

func TestVersionFlag(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestCheck(t *testing.T) {
	cfgPath := writeConfig(t, newSQLiteFile(t))

	t.Run("single healthy profile", func(t *testing.T) {
		out, err := runCLI(t, "check", "--config", cfgPath, "--profile", "local")
		require.NoError(t, err)
		assert.Contains(t, out, "local")
		assert.Contains(t, out, "1 tables")
	})

	t.Run("unreachable profile fails", func(t *testing.T) {
		out, err := runCLI(t, "check", "--config", cfgPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
		assert.Contains(t, out, "FAILED")
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := runCLI(t, "check", "--config", cfgPath, "--profile", "nope")
		require.Error(t, err)
	})
}

func TestSessions(t *testing.T) {
	cfgPath := writeConfig(t, newSQLiteFile(t))

	out, err := runCLI(t, "sessions", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = runCLI(t, "sessions", "drop", "--config", cfgPath, "4b4c1d2e-0000-4000-8000-000000000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheck_MissingConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := runCLI(t, "check", "--config", "nope.yaml")
	require.Error(t, err)
}

func TestRootHelp(t *testing.T) {
	out, err := runCLI(t, "help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "check", "sessions"} {
		assert.Contains(t, out, sub)
	}
	assert.NotContains(t, out, "completion")

	out, err = runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "tablescope")
}

func TestLoadEnvFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		preset   string
		wantFile string
		want     string
	}{
		{
			name:     "local file preferred",
			files:    map[string]string{".env.local": "TABLESCOPE_ENV_TEST=local\n", ".env": "TABLESCOPE_ENV_TEST=base\n"},
			wantFile: ".env.local",
			want:     "local",
		},
		{
			name:     "falls back to .env",
			files:    map[string]string{".env": "TABLESCOPE_ENV_TEST=base\n"},
			wantFile: ".env",
			want:     "base",
		},
		{
			name:     "process environment wins",
			files:    map[string]string{".env": "TABLESCOPE_ENV_TEST=base\n"},
			preset:   "shell",
			wantFile: ".env",
			want:     "shell",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			dir := t.TempDir()
			for name, content := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
			}
			if tt.preset != "" {
				t.Setenv("TABLESCOPE_ENV_TEST", tt.preset)
			} else {
				t.Cleanup(func() { _ = os.Unsetenv("TABLESCOPE_ENV_TEST") })
			}

			loaded := LoadEnvFiles(dir)
			assert.Equal(t, filepath.Join(dir, tt.wantFile), loaded)
			assert.Equal(t, tt.want, os.Getenv("TABLESCOPE_ENV_TEST"))
		})
	}
}
