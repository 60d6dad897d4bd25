package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/scancheck"
)

func newScanCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-check",
		Short: "Verify at-most-once attendance against a running server",
		Long: `Enroll synthetic identities with random unit embeddings, create a session
spanning today and submit every identity from many workers at once. The
check passes when each identity is recorded exactly once and every other
submission is reported as a duplicate.

Examples:
  rollcallctl scan-check --url http://localhost:9080 --identities 50 --workers 16 --repeats 4 --dim 512`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := initLogger(cmd, cfg)
			if err != nil {
				return err
			}

			dim := mustGetInt(cmd, "dim")
			if dim == 0 {
				dim = cfg.EmbeddingDim
			}
			runCfg := scancheck.Config{
				BaseURL:    mustGetString(cmd, "url"),
				Identities: mustGetInt(cmd, "identities"),
				Workers:    mustGetInt(cmd, "workers"),
				Repeats:    mustGetInt(cmd, "repeats"),
				Dimension:  dim,
				Scope:      mustGetString(cmd, "scope"),
				Timeout:    mustGetDuration(cmd, "timeout"),
				Cleanup:    mustGetBool(cmd, "cleanup"),
			}
			if !mustGetBool(cmd, "quiet") {
				bar := newScanProgressBar(cmd.ErrOrStderr(), runCfg.Submissions())
				runCfg.Progress = func() { _ = bar.Add(1) }
				defer func() { _ = bar.Finish() }()
			}
			report, err := scancheck.Run(ctx, runCfg, log.Named("scancheck"))

			fmt.Fprintf(cmd.OutOrStdout(),
				"session=%s identities=%d submitted=%d recorded=%d duplicate=%d (want %d) unrecognized=%d mismatched=%d failed=%d attendance=%d duration=%s\n",
				report.SessionID, report.Identities, report.Submitted, report.Recorded,
				report.Duplicate, report.ExpectedDuplicates(), report.Unrecognized,
				report.Mismatched, report.Failed, report.Attendance, report.Duration)
			return err
		},
	}
	cmd.Flags().String("url", scancheck.DefaultBaseURL, "Base URL of the server")
	cmd.Flags().Int("identities", scancheck.DefaultIdentities, "Synthetic identities to enroll")
	cmd.Flags().Int("workers", scancheck.DefaultWorkers, "Concurrent submitters")
	cmd.Flags().Int("repeats", scancheck.DefaultRepeats, "Submissions of every identity per worker")
	cmd.Flags().Int("dim", 0, "Embedding dimension; configured embedding_dim when 0")
	cmd.Flags().String("scope", "", "Session scope; generated when empty")
	cmd.Flags().Duration("timeout", scancheck.DefaultTimeout, "Per-request HTTP timeout")
	cmd.Flags().Bool("cleanup", true, "Delete the synthetic enrollments afterwards")
	cmd.Flags().Bool("quiet", false, "Hide the progress bar")
	return cmd
}

func newScanProgressBar(w io.Writer, count int) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Submitting frames"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
