package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/session"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir   string
		workers  int
		metadata bool
	)

	cmd := &cobra.Command{
		Use:   "export <diff>",
		Short: "Write every chunk to its own file",
		Long: `Write every chunk to DIR/chunk-NNN.diff.

Without --metadata each file is a plain diff that git apply accepts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return errors.New("--out is required")
			}

			sess, err := loadDiff(cmd, opts, args[0])
			if err != nil {
				return err
			}

			paths, err := sess.Export(cmd.Context(), outDir, session.ExportOptions{
				Workers:  workers,
				Metadata: metadata,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s to %s\n", len(paths), plural(len(paths), "chunk"), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (created if missing)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Files written in parallel (default: number of CPUs)")
	cmd.Flags().BoolVar(&metadata, "metadata", false, "Prefix each file with the chunk banner")
	return cmd
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
