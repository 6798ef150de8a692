package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/mcp"
	"github.com/dshills/diffchunk-mcp/internal/storage"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the MCP server on stdio.

stdout is reserved for the protocol; logs are written to stderr as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := opts.settings(cmd)
			if err != nil {
				return err
			}

			// Log to stderr (stdout reserved for MCP protocol)
			logger, err := newLogger(cmd.ErrOrStderr(), file.Server.LogLevel, true)
			if err != nil {
				return err
			}
			logger.Info("diffchunk MCP server starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName)

			var history storage.Storage
			if !file.Server.HistoryDisabled {
				path, err := file.Server.ResolvedHistoryPath()
				if err != nil {
					return err
				}
				store, err := storage.NewSQLiteStorage(path)
				if err != nil {
					// The server is still useful without history
					logger.Warn("load history unavailable", "path", path, "error", err)
				} else {
					history = store
				}
			}

			server, err := mcp.NewServer(mcp.Options{
				Defaults:    file.Chunking,
				MaxSessions: file.Server.MaxSessions,
				History:     history,
				Logger:      logger,
			})
			if err != nil {
				if history != nil {
					_ = history.Close()
				}
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			// Set up graceful shutdown
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Handle shutdown signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			// Start server in a goroutine
			errChan := make(chan error, 1)
			go func() {
				errChan <- server.ServeIO(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			}()

			// Wait for shutdown signal or error
			select {
			case sig := <-sigChan:
				logger.Info("shutting down", "signal", sig.String())
				cancel()
				<-errChan
			case err := <-errChan:
				if err != nil && ctx.Err() == nil {
					return fmt.Errorf("server error: %w", err)
				}
			}

			logger.Info("server stopped")
			return nil
		},
	}
}
