package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperterse/tablescope/core/infrastructure/di"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect sessions held in the shared cache",
}

var sessionsListCmd = &cobra.Command{
	Use:           "list",
	Short:         "List active session ids",
	Args:          cobra.NoArgs,
	RunE:          listSessions,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var sessionsDropCmd = &cobra.Command{
	Use:           "drop <session-id>",
	Short:         "Drop a session and its cached data",
	Args:          cobra.ExactArgs(1),
	RunE:          dropSession,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDropCmd)
}

func openContainer(cmd *cobra.Command) (*di.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c, err := di.NewContainer(cmd.Context(), cfg)
	if err != nil {
		return nil, logging.WithTag("sessions", err)
	}
	return c, nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ids, err := c.Browser.Sessions(cmd.Context())
	if err != nil {
		return logging.WithTag("sessions", err)
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func dropSession(cmd *cobra.Command, args []string) error {
	c, err := openContainer(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	dropped, err := c.Browser.DropSession(cmd.Context(), args[0])
	if err != nil {
		return logging.WithTag("sessions", err)
	}
	if !dropped {
		return logging.WithTag("sessions", fmt.Errorf("session %s not found", args[0]))
	}
	// The session's cached tables and records are now orphaned.
	if _, err := c.Browser.Reap(cmd.Context()); err != nil {
		return logging.WithTag("sessions", err)
	}
	logging.New("sessions").Successf("Dropped %s", args[0])
	return nil
}
