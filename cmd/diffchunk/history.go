package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/storage"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show diffs recently loaded by the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			if file.Server.HistoryDisabled {
				return errors.New("load history is disabled (server.history_disabled)")
			}

			path, err := file.Server.ResolvedHistoryPath()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			loads, err := store.ListLoads(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(loads) == 0 {
				fmt.Fprintln(out, "No loads recorded")
				return nil
			}
			for _, l := range loads {
				fmt.Fprintf(out, "%-14s  %s  %3d chunks  %7s lines  %s\n",
					humanize.Time(l.LoadedAt), shortHandle(l.Handle), l.ChunkCount,
					humanize.Comma(int64(l.TotalLines)), l.DiffPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of loads to show (0 for all)")
	return cmd
}

func shortHandle(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
