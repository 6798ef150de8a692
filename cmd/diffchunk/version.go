package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/diffchunk-mcp/internal/mcp"
	"github.com/dshills/diffchunk-mcp/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "diffchunk version: %s\n", version)
			fmt.Fprintf(out, "  build time: %s\n", buildTime)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  mcp server: %s %s\n", mcp.ServerName, mcp.ServerVersion)
			fmt.Fprintf(out, "  build mode: %s (driver %s)\n", storage.BuildMode, storage.DriverName)
		},
	}
}
