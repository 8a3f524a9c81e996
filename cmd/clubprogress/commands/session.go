package commands

import (
	"fmt"
	"strings"
	"time"

	"clubprogress/cmd/clubprogress/globals"
	"clubprogress/cmd/clubprogress/utils"
	"clubprogress/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspects or removes the stored login session.",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the stored session, cookie values are not shown.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		store := session.NewStore(g.Config.SessionFile(), g.Tel)

		rec, err := store.Load()
		if err != nil {
			return fmt.Errorf("no readable session at %s: %w", store.Path(), err)
		}

		t := utils.NewTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Field", "Value"})
		dashboard := "-"
		if rec.DashboardClubId != nil {
			dashboard = *rec.DashboardClubId
		}
		cookieNames := make([]string, len(rec.Cookies))
		for i, c := range rec.Cookies {
			cookieNames[i] = c.Name
		}
		t.AppendRows([]table.Row{
			{"User id", rec.UserId},
			{"Club id", rec.ClubId},
			{"Dashboard club id", dashboard},
			{"Enrollment entries", len(rec.MemberEnrollmentStatus)},
			{"Created", rec.Timestamp.Format(time.RFC1123)},
			{"Expires", rec.Expires.Format(time.RFC1123)},
			{"Valid", rec.Valid(time.Now()) && rec.Usable()},
			{"Cookies", strings.Join(cookieNames, ", ")},
		})
		t.Render()
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes the stored session so the next collection logs in again.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g := globals.Get(cmd.Context())
		store := session.NewStore(g.Config.SessionFile(), g.Tel)
		err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed", store.Path())
		return nil
	},
}
