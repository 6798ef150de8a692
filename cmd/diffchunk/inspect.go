package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/session"
)

// loadDiff loads path with the settings of cmd. Commands only log
// warnings unless --log-level or DIFFCHUNK_LOG_LEVEL is given.
func loadDiff(cmd *cobra.Command, opts *rootOptions, path string) (*session.Session, error) {
	file, err := opts.settings(cmd)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if cmd.Flags().Changed("log-level") || os.Getenv(envLogLevel) != "" {
		level = file.Server.LogLevel
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, false)
	if err != nil {
		return nil, err
	}

	return session.NewLoader(logger).Load(cmd.Context(), path, file.Chunking)
}

func newInfoCmd(opts *rootOptions) *cobra.Command {
	var showStats bool

	cmd := &cobra.Command{
		Use:   "info <diff>",
		Short: "Show what a diff contains and how it chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadDiff(cmd, opts, args[0])
			if err != nil {
				return err
			}
			st, _ := sess.Stats()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "File:       %s\n", sess.Path)
			fmt.Fprintf(out, "SHA-256:    %s\n", sess.Hash())
			fmt.Fprintf(out, "Chunks:     %s (max %s lines each)\n",
				humanize.Comma(int64(st.ChunkCount)), humanize.Comma(int64(sess.Config.MaxChunkLines)))
			fmt.Fprintf(out, "Files:      %s (%d trivial-only, %d excluded, %d generated, %d binary)\n",
				humanize.Comma(int64(st.FileCount)), st.TrivialCount, st.ExcludedCount, st.GeneratedCount, st.BinaryFiles)
			fmt.Fprintf(out, "Lines:      %s (+%s -%s, %s trivial)\n",
				humanize.Comma(int64(st.TotalLines)), humanize.Comma(int64(st.Additions)),
				humanize.Comma(int64(st.Deletions)), humanize.Comma(int64(st.TrivialLines)))
			fmt.Fprintf(out, "Anomalies:  %d\n", st.AnomalyCount)
			fmt.Fprintf(out, "Loaded in:  %s\n", sess.Duration.Round(time.Microsecond))

			if !showStats {
				return nil
			}

			chunks, err := sess.ListChunks()
			if err != nil {
				return err
			}
			if len(chunks) == 0 {
				return nil
			}

			minLines, maxLines, sum := chunks[0].LineCount, chunks[0].LineCount, 0
			for _, c := range chunks {
				minLines = min(minLines, c.LineCount)
				maxLines = max(maxLines, c.LineCount)
				sum += c.LineCount
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Chunk lines: min %s, max %s, mean %s\n",
				humanize.Comma(int64(minLines)), humanize.Comma(int64(maxLines)),
				humanize.CommafWithDigits(float64(sum)/float64(len(chunks)), 1))

			anomalies, _ := sess.Anomalies()
			for _, a := range anomalies {
				fmt.Fprintf(out, "Anomaly: %s line %d: %s\n", a.Path, a.Line, a.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStats, "stats", false, "Also show the chunk size distribution and parse anomalies")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <diff>",
		Short: "List the chunks of a diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadDiff(cmd, opts, args[0])
			if err != nil {
				return err
			}
			chunks, err := sess.ListChunks()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(chunks) == 0 {
				fmt.Fprintln(out, "No chunks: every change was filtered out")
				return nil
			}

			width := len(strconv.Itoa(len(chunks)))
			for _, c := range chunks {
				fmt.Fprintf(out, "%*d  %7s lines  %s\n", width, c.Index, humanize.Comma(int64(c.LineCount)), c.Summary)
			}
			return nil
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var noMetadata bool

	cmd := &cobra.Command{
		Use:   "show <diff> <chunk>",
		Short: "Print one chunk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("chunk number must be an integer, got %q", args[1])
			}

			sess, err := loadDiff(cmd, opts, args[0])
			if err != nil {
				return err
			}
			text, err := sess.GetChunk(n, session.GetOptions{Metadata: !noMetadata})
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Print the bare diff without the chunk banner")
	return cmd
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <diff> <pattern>",
		Short: "Find the chunks holding files that match a glob pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := loadDiff(cmd, opts, args[0])
			if err != nil {
				return err
			}
			hits, err := sess.FindChunksForFiles(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintf(out, "No chunks contain files matching %s\n", args[1])
				return nil
			}

			nums := make([]string, len(hits))
			for i, h := range hits {
				nums[i] = strconv.Itoa(h)
			}
			fmt.Fprintln(out, strings.Join(nums, " "))
			return nil
		},
	}
}
