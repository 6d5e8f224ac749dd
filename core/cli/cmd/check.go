package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperterse/tablescope/core/infrastructure/adapters"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

// checkCmd connects to the configured profiles and reports what it finds.
var checkCmd = &cobra.Command{
	Use:           "check",
	Short:         "Validate the config and test its connection profiles",
	RunE:          check,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&profileName, "profile", "", "Check only the named connection profile")
	checkCmd.Flags().BoolVarP(&verbose, "verbose", "", false, "Enable verbose logging (sets log level to DEBUG)")
}

func check(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New("check")

	profiles, err := cfg.Profiles(profileName)
	if err != nil {
		return logging.WithTag("check", err)
	}
	if len(profiles) == 0 {
		log.Success("Config is valid, no connection profiles to check")
		return nil
	}

	results := adapters.CheckProfiles(cmd.Context(), profiles, adapters.Options{
		ConnectTimeout: cfg.Adapters.ConnectTimeout,
		QueryLogging:   cfg.Adapters.QueryLogging,
	})

	out := cmd.OutOrStdout()
	for _, r := range results {
		status := fmt.Sprintf("%d tables", r.Tables)
		if r.Err != nil {
			status = "FAILED: " + r.Err.Error()
		}
		fmt.Fprintf(out, "%-20s %-10s %8s  %s\n", r.Name, r.Kind, r.Elapsed.Round(time.Millisecond), status)
	}

	if err := adapters.CheckErrors(results); err != nil {
		return logging.WithTag("check", err)
	}
	log.Successf("%d profile(s) reachable", len(results))
	return nil
}
