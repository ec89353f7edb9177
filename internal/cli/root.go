// Package cli provides the order-router command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/config"
	"github.com/decarvalhoe/trading-bot-open-source-sub001/pkg/logging"
)

// app carries what every subcommand needs once the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "order-router",
		Short: "Risk-checked order routing and strategy orchestration",
		Long: `order-router admits orders against per-order risk rules and a daily notional
limit, fills them on a paper venue or routes them to a live broker, and runs
strategies that submit their signals through the router.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.LogLevel = "debug"
			}
			a.cfg = cfg
			a.logger = logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.ServiceName, cfg.Env)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	rootCmd.AddCommand(newServeRouterCmd(a))
	rootCmd.AddCommand(newServeEngineCmd(a))
	rootCmd.AddCommand(newExecuteCmd(a))
	rootCmd.AddCommand(newPlanCmd(a))
	rootCmd.AddCommand(newTokenCmd(a))
	rootCmd.AddCommand(newVersionCmd(version))

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Configuration file path (optional)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	return rootCmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "order-router %s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
