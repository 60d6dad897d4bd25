package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	service "github.com/okian/rollcall/internal/app"
)

func newEnrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll one face embedding for an identity",
		Long: `Store one enrollment sample. The embedding file holds a JSON array of
floats with exactly the configured embedding dimension; use "-" to read it
from stdin.

Examples:
  rollcallctl enroll --id S1 --name "Student One" --scope math --embedding-file s1.json
  extract-face photo.jpg | rollcallctl enroll --id S1 --name "Student One" --embedding-file -`,
		Args: cobra.NoArgs,
		RunE: runEnroll,
	}
	cmd.Flags().String("id", "", "External identity id (required)")
	cmd.Flags().String("name", "", "Display name (required)")
	cmd.Flags().String("scope", "", "Scope the sample applies to; empty enrolls for every scope")
	cmd.Flags().String("embedding-file", "", "Path to a JSON array of floats, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("embedding-file")
	return cmd
}

func runEnroll(cmd *cobra.Command, _ []string) error {
	emb, err := readEmbedding(cmd.InOrStdin(), mustGetString(cmd, "embedding-file"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, done, err := openService(ctx, cmd)
	if err != nil {
		return err
	}
	defer done()

	sample, err := svc.Enroll(ctx, service.EnrollRequest{
		ExternalID:  mustGetString(cmd, "id"),
		DisplayName: mustGetString(cmd, "name"),
		Scope:       mustGetString(cmd, "scope"),
		Faces:       [][]float32{emb},
	})
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), sample.SampleID)
	return nil
}

func readEmbedding(stdin io.Reader, path string) ([]float32, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding: %w", err)
	}
	var emb []float32
	if err := json.Unmarshal(data, &emb); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if len(emb) == 0 {
		return nil, errors.New("embedding is empty")
	}
	return emb, nil
}

func newUnenrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unenroll SAMPLE_ID",
		Short: "Delete one enrollment sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, done, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := svc.Unenroll(ctx, args[0]); err != nil {
				return fmt.Errorf("unenroll: %w", err)
			}
			return nil
		},
	}
}

func newEnrollmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrollments",
		Short: "List enrollment samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, done, err := openService(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			samples, err := svc.ListEnrollments(ctx, mustGetString(cmd, "scope"))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SAMPLE\tEXTERNAL ID\tNAME\tSCOPE")
			for _, s := range samples {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.SampleID, s.ExternalID, s.DisplayName, s.Scope)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("scope", "", "Only list samples of this scope")
	return cmd
}
