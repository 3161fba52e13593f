// root.go builds the cobra root command and its subcommands
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvrsync/camsync/internal/buildinfo"
	"github.com/nvrsync/camsync/internal/config"
)

// RootCommand creates and returns the root command.
func RootCommand(build buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "camsync",
		Short: "camsync bridges an NVR's events to remote object stores",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the configuration file (default: search standard locations)")

	runCmd := newRunCommand(&configPath)
	validateCmd := newValidateConfigCommand(&configPath)
	versionCmd := newVersionCommand(build)

	rootCmd.AddCommand(runCmd, validateCmd, versionCmd)

	return rootCmd
}

func newVersionCommand(build buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "camsync %s (built %s)\n", build.Version, build.BuildDate)
			return nil
		},
	}
}

func newValidateConfigCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration file without starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d upload destination(s), mqtt broker %q\n",
				len(settings.UploadDestinations), settings.MQTT.Broker)
			return nil
		},
	}
}
