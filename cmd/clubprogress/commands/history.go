package commands

import (
	"fmt"
	"time"

	"clubprogress/cmd/clubprogress/globals"
	"clubprogress/cmd/clubprogress/utils"
	"clubprogress/internal/history"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().Int("limit", 20, "The number of runs to list when no member is given.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [member] [--limit <n>]",
	Short: "Lists recorded runs, or the progress of one member across runs.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g := globals.Get(ctx)

		store, closeFn, err := history.Open(ctx, g.Config.HistoryFile())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer closeFn()

		t := utils.NewTable(cmd.OutOrStdout())
		if len(args) == 0 {
			runs, err := store.Runs(ctx, *historyLimit)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Time", "Club", "Members", "Run"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.Time.Local().Format(time.DateTime), r.ClubName, r.MemberCount, r.Id})
			}
			t.Render()
			return nil
		}

		series, err := store.Pull(ctx, args[0])
		if err != nil {
			return err
		}
		if len(series) == 0 {
			return fmt.Errorf("no recorded progress for %q", args[0])
		}
		t.AppendHeader(table.Row{"Pathway", "Time", "Level", "Completion", "Status"})
		for _, s := range series {
			for _, snap := range s.Snapshots {
				t.AppendRow(table.Row{
					s.Pathway,
					snap.Time.Local().Format(time.DateTime),
					snap.Level,
					fmt.Sprintf("%.1f%%", snap.Percentage),
					snap.Status,
				})
			}
			t.AppendSeparator()
		}
		t.Render()
		return nil
	},
}
