package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAttendanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance SESSION_ID",
		Short: "List identities recorded for a session",
		Long: `List identities recorded for a session in arrival order.
With --delete EXTERNAL_ID the recorded event of that identity is removed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, done, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			if ext := mustGetString(cmd, "delete"); ext != "" {
				if err := svc.DeleteAttendance(ctx, args[0], ext); err != nil {
					return fmt.Errorf("delete attendance: %w", err)
				}
				return nil
			}

			records, err := svc.Attendance(ctx, args[0])
			if err != nil {
				return fmt.Errorf("attendance: %w", err)
			}
			loc := svc.Location()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EXTERNAL ID\tNAME\tTIME\tSCORE\tNOTE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.ExternalID, r.DisplayName, r.Timestamp.In(loc).Format(time.RFC3339), r.Score, r.Note)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("delete", "", "Remove the recorded event of this external id")
	return cmd
}
