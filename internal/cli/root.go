package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fsgate/internal/allowlist"
	"github.com/ppiankov/fsgate/internal/config"
	"github.com/ppiankov/fsgate/internal/fsops"
	"github.com/ppiankov/fsgate/internal/logging"
)

var (
	configPath string
	logLevel   string

	settings *config.Config
	logger   *logging.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to settings YAML (default $XDG_CONFIG_HOME/fsgate/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

var rootCmd = &cobra.Command{
	Use:   "fsgate",
	Short: "Access-gated filesystem tools for MCP clients",
	Long: "Serves list, read, write, delete, mkdir and move over MCP, confined to the\n" +
		"directories listed in MCP_FS_ALLOWED_DIRS. Paths are resolved (home expansion,\n" +
		"symlinks) and checked against the allow-list on every call.",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if _, err := logging.ParseLevel(logLevel); err != nil {
			return err
		}
		cfg.LogLevel = logLevel
	}
	settings = cfg
	logger = logging.NewStderr(cfg.LogLevel)
	return nil
}

// newDispatcher builds a dispatcher reading the configured allow-list variable.
func newDispatcher() *fsops.Dispatcher {
	return fsops.New(
		allowlist.FromEnv(settings.AllowedDirsEnv),
		fsops.WithLogger(logger.With("component", "fsops")),
	)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// errorLine renders err as "<Kind>: <message>", the same shape MCP clients see.
func errorLine(err error) string {
	msg := err.Error()
	var fe *fsops.Error
	if errors.As(err, &fe) {
		msg = fe.Message()
	}
	return fmt.Sprintf("%s: %s", fsops.Classify(err), msg)
}
