package commands

import (
	"context"
	"fmt"
	"time"

	"clubprogress/cmd/clubprogress/globals"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/pipeline"

	"github.com/spf13/cobra"
)

var reauth *bool
var noReport *bool
var installBrowser *bool

func init() {
	reauth = collectCmd.Flags().Bool("reauth", false, "Log in again even if the stored session is still valid.")
	noReport = collectCmd.Flags().Bool("no-report", false, "Skip rendering and mailing reports.")
	installBrowser = collectCmd.Flags().Bool("install-browser", false, "Download the browser driver before logging in.")
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect [--reauth] [--no-report]",
	Short: "Fetches the club's progress and writes summaries, history and reports.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)

		tracing, err := telemetry.SetupTracing(ctx, "clubprogress", g.Config.Telemetry)
		if err != nil {
			g.Tel.ReportWarning("collect.tracing", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				g.Tel.ReportWarning("collect.tracing", err)
			}
		}()

		p, closeDeps, err := newPipeline(ctx, g.Config, *installBrowser, g.Tel)
		if err != nil {
			return err
		}
		defer closeDeps()

		result, err := p.Run(ctx, pipeline.Options{
			Reauth:   *reauth,
			NoReport: *noReport,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(
			out, "%d/%d detail fetches succeeded, %d members in %s\n",
			len(result.Details.Entries), result.Details.Total,
			len(result.Club.Members), result.Club.ClubName,
		)
		if result.Details.SessionExpired {
			fmt.Fprintln(out, "the session expired during the run, rerun with --reauth for complete details")
		}
		for _, path := range result.Reports {
			fmt.Fprintln(out, "report:", path)
		}
		return nil
	},
}
