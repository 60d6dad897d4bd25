package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/rollcall/internal/app"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Create and list session windows",
	}
	cmd.AddCommand(newSessionsCreateCmd(), newSessionsListCmd())
	return cmd
}

func newSessionsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session window",
		Long: `Create a session window. Date and times are read in the configured timezone.

Examples:
  rollcallctl sessions create --scope math --date 2024-03-04 --start 09:00 --end 10:00
  rollcallctl sessions create --id 1 --scope math --date 2024-03-04 --start 09:00 --end 10:00 --grace 15 --max-score 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, done, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			w, err := svc.CreateSession(ctx, service.CreateSessionRequest{
				SessionID:        mustGetString(cmd, "id"),
				ScopeKey:         mustGetString(cmd, "scope"),
				Date:             mustGetString(cmd, "date"),
				StartTime:        mustGetString(cmd, "start"),
				EndTime:          mustGetString(cmd, "end"),
				LateGraceMinutes: optionalInt(cmd, "grace"),
				MaxScore:         optionalInt(cmd, "max-score"),
			})
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), w.SessionID)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Session id; generated when empty")
	cmd.Flags().String("scope", "", "Scope key (class or group)")
	cmd.Flags().String("date", time.Now().Format(time.DateOnly), "Session date, YYYY-MM-DD")
	cmd.Flags().String("start", "", "Start time, HH:MM (required)")
	cmd.Flags().String("end", "", "End time, HH:MM (required)")
	cmd.Flags().Int("grace", 0, "Late grace in minutes; configured default when unset")
	cmd.Flags().Int("max-score", 0, "Score for on-time arrival; configured default when unset")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions ordered by start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, done, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			sessions, err := svc.ListSessions(ctx)
			if err != nil {
				return err
			}
			if mustGetBool(cmd, "json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}

			loc := svc.Location()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSCOPE\tSTART\tEND\tGRACE\tMAX")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					s.SessionID, s.ScopeKey,
					s.Start.In(loc).Format(time.RFC3339), s.End.In(loc).Format(time.RFC3339),
					s.LateGrace, s.MaxScore)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}
