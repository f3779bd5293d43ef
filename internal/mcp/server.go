package mcp

import (
	"context"
	"fmt"
	"log"
	"os"

	mcp "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"

	"labelerdir/internal/snapshot"
)

// Run serves the labeler tools over stdio until ctx is done. The store is
// read on every call, so results follow its regeneration schedule.
func Run(ctx context.Context, store *snapshot.Store, logger *log.Logger) error {
	// Check if we're in MCP mode (stdio connected)
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
		return fmt.Errorf("MCP server mode requires stdin/stdout to be connected (not a terminal)")
	}

	server := mcp.NewServer(stdio.NewStdioServerTransport())
	if err := Register(server, NewTools(store)); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	if logger != nil {
		logger.Println("MCP server ready, serving requests...")
	}
	if err := server.Serve(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	// Serve returns immediately; requests are handled in background goroutines
	<-ctx.Done()
	return nil
}
