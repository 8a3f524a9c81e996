package commands

import (
	"context"

	"clubprogress/cmd/clubprogress/globals"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/config"

	"github.com/spf13/cobra"
)

var configPath *string
var verbose *bool

func init() {
	configPath = rootCmd.PersistentFlags().String("config", config.DefaultFile, "The config file, <name>.local.<ext> next to it overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
}

var rootCmd = &cobra.Command{
	Use:           "clubprogress",
	Short:         "clubprogress collects the pathway progress of a club's members and reports on it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cmd.SetContext(globals.Set(cmd.Context(), &globals.Value{
			Config: cfg,
			Tel:    telemetry.NewSlogAPI(nil),
		}))
		return nil
	},
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
