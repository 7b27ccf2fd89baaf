package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	fsmcp "github.com/ppiankov/fsgate/internal/mcp"
)

const shutdownTimeout = 5 * time.Second

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen address (default from settings, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from settings or $PORT, 3000)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP tool server over streamable HTTP",
	Long: "Runs fsgate as an MCP server over streamable HTTP at /mcp.\n" +
		"Same tools and allow-list as the stdio server.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func serveAddr(cmd *cobra.Command) string {
	addr := settings.HTTP
	if cmd.Flags().Changed("host") {
		addr.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		addr.Port = servePort
	}
	return addr.Addr()
}

// newServeMux mounts the MCP handler at /mcp and a liveness probe at /healthz.
func newServeMux(srv *fsmcp.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := newMCPServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	addr := serveAddr(cmd)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(srv),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext("Shutting down HTTP server...")
	defer cancel()
	watchSettings(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "fsgate MCP server listening on http://%s/mcp\n", addr)
	fmt.Fprintf(os.Stderr, "Allow-list: $%s (%d roots)\n", settings.AllowedDirsEnv, len(srv.Dispatcher().Roots()))
	fmt.Fprintln(os.Stderr)

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
