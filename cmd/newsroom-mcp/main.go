// Command newsroom-mcp serves production runs over MCP. It accepts the same
// flags as "newsroom mcp".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/newsroom/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.ExecuteMCP(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
