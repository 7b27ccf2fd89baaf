package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fsgate/internal/config"
	fsmcp "github.com/ppiankov/fsgate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server on stdio",
	Long: "Runs fsgate as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes fs_list, fs_read_file, fs_write_file, fs_delete, fs_mkdir and fs_move.",
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func newMCPServer() (*fsmcp.Server, error) {
	srv, err := fsmcp.New(fsmcp.Config{
		AllowedDirsEnv: settings.AllowedDirsEnv,
		AuditLogPath:   settings.AuditLog,
		Version:        version,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return srv, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(onSignal string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n"+onSignal)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// watchSettings hot-reloads the log level while a server runs.
func watchSettings(ctx context.Context) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	reloader, err := config.NewReloader(path, func(cfg *config.Config) {
		if logLevel != "" {
			return
		}
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Warn("ignoring reloaded log level", "error", err)
		}
	}, logger)
	if err != nil {
		logger.Debug("settings hot-reload disabled", "error", err)
		return
	}
	go reloader.Run(ctx)
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := newMCPServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := signalContext("Shutting down MCP server...")
	defer cancel()
	watchSettings(ctx)

	fmt.Fprintln(os.Stderr, "fsgate MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Allow-list: $%s (%d roots)\n", settings.AllowedDirsEnv, len(srv.Dispatcher().Roots()))
	if settings.AuditLog != "" {
		fmt.Fprintf(os.Stderr, "Audit log: %s (session %s)\n", settings.AuditLog, srv.SessionID())
	}
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
