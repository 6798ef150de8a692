package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/config"
)

// envLogLevel overrides the settings file log level when --log-level is unset
const envLogLevel = "DIFFCHUNK_LOG_LEVEL"

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath       string
	maxLines         int
	skipTrivial      bool
	skipGenerated    bool
	include          string
	exclude          string
	whitespace       string
	noFileBoundaries bool
	logLevel         string
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "diffchunk",
		Short: "Split large diffs into navigable chunks",
		Long: `diffchunk - Split large unified diffs into chunks that fit a line budget.

It parses git diff, diff -u and git format-patch output, drops changes
that are only whitespace along with generated files, and packs the rest
into chunks. Run "diffchunk serve" to expose it to AI assistants over MCP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Settings file (default: $DIFFCHUNK_CONFIG, .diffchunk.yaml, ~/.config/diffchunk/config.yaml)")
	flags.IntVar(&opts.maxLines, "max-lines", config.DefaultMaxChunkLines, "Maximum diff lines per chunk")
	flags.BoolVar(&opts.skipTrivial, "skip-trivial", true, "Drop files whose changes are only whitespace")
	flags.BoolVar(&opts.skipGenerated, "skip-generated", true, "Drop lock files, minified bundles and build output")
	flags.StringVar(&opts.include, "include", "", "Comma-separated glob patterns of files to keep")
	flags.StringVar(&opts.exclude, "exclude", "", "Comma-separated glob patterns of files to drop")
	flags.StringVar(&opts.whitespace, "whitespace", string(config.WhitespaceTrailing), "Trivial whitespace mode: trailing, indentation or all")
	flags.BoolVar(&opts.noFileBoundaries, "no-file-boundaries", false, "Fill every chunk to the budget even if that splits small files")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (env: DIFFCHUNK_LOG_LEVEL)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newInfoCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newFindCmd(opts),
		newExportCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// settings loads the settings file and applies any flags set on the
// command line over it
func (o *rootOptions) settings(cmd *cobra.Command) (*config.File, error) {
	var (
		file *config.File
		err  error
	)
	if o.configPath != "" {
		file, err = config.Load(o.configPath)
	} else {
		file, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	cfg := &file.Chunking
	if changed("max-lines") {
		cfg.MaxChunkLines = o.maxLines
	}
	if changed("skip-trivial") {
		cfg.SkipTrivial = o.skipTrivial
	}
	if changed("skip-generated") {
		cfg.SkipGenerated = o.skipGenerated
	}
	if changed("include") {
		cfg.IncludePatterns = config.SplitPatterns(o.include)
	}
	if changed("exclude") {
		cfg.ExcludePatterns = config.SplitPatterns(o.exclude)
	}
	if changed("whitespace") {
		cfg.Whitespace = config.WhitespaceMode(o.whitespace)
	}
	if changed("no-file-boundaries") {
		cfg.PreferFileBoundaries = !o.noFileBoundaries
	}
	if changed("log-level") {
		file.Server.LogLevel = o.logLevel
	} else if lvl := os.Getenv(envLogLevel); lvl != "" {
		file.Server.LogLevel = lvl
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// newLogger creates a logger writing to w. Commands log as text; the
// server logs JSON so clients can capture stderr as structured records.
func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
