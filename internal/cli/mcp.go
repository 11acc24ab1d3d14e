package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/apresai/newsroom/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve production runs as MCP tools",
	RunE:  runMCP,
}

var (
	flagMCPAddr      string
	flagMCPTransport string
	flagMCPMaxRuns   int
)

func init() {
	mcpCmd.Flags().StringVar(&flagMCPAddr, "addr", "", "Listen address for the http transport (default :8000)")
	mcpCmd.Flags().StringVar(&flagMCPTransport, "transport", "", "Transport: http or stdio (default http)")
	mcpCmd.Flags().IntVar(&flagMCPMaxRuns, "max-runs", 0, "Maximum runs kept in memory (default 20)")
}

// ExecuteMCP runs the mcp command with the process arguments, for the
// standalone server binary.
func ExecuteMCP(ctx context.Context) error {
	rootCmd.SetArgs(append([]string{"mcp"}, os.Args[1:]...))
	return rootCmd.ExecuteContext(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, os.Stderr)
	if err != nil {
		return err
	}
	defer sess.Close()

	cfg := sess.cfg.MCP
	if flagMCPAddr != "" {
		cfg.Addr = flagMCPAddr
	}
	if flagMCPTransport != "" {
		cfg.Transport = flagMCPTransport
	}
	if flagMCPMaxRuns > 0 {
		cfg.MaxRuns = flagMCPMaxRuns
	}

	srv := mcpserver.New(ctx, mcpserver.Config{
		Addr:      cfg.Addr,
		Transport: cfg.Transport,
		MaxRuns:   cfg.MaxRuns,
		Version:   Version,
	}, sess.app, sess.logger)
	return srv.Start(ctx)
}
