// Package cli provides the docqr command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Xangel0s/docqr-Flex-sub000/config"
	"github.com/Xangel0s/docqr-Flex-sub000/logging"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type ctxKey int

const configKey ctxKey = 0

func withConfig(ctx context.Context, c *config.AppConfig) context.Context {
	return context.WithValue(ctx, configKey, c)
}

// configFromContext returns the loaded configuration, or the defaults.
func configFromContext(ctx context.Context) *config.AppConfig {
	if c, ok := ctx.Value(configKey).(*config.AppConfig); ok {
		return c
	}
	return config.Default()
}

// NewRootCommand builds the docqr command tree. Logs go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	var (
		configPath string
		verbose    bool
		closeLog   = func() error { return nil }
	)

	root := &cobra.Command{
		Use:          "docqr",
		Short:        "docqr places retrieval codes on single-page documents",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.LoadAppConfig(configPath); err != nil {
					return err
				}
			}
			if verbose {
				cfg.Logging.Level = "debug"
			}

			var logger *log.Logger
			var err error
			if cfg.Logging.Output == "stderr" {
				level, _ := log.ParseLevel(cfg.Logging.Level)
				logger, err = logging.NewWriter(stderr, level, cfg.Logging.Format)
			} else {
				logger, closeLog, err = logging.New(cfg.Logging)
			}
			if err != nil {
				return err
			}

			ctx := logging.WithContext(cmd.Context(), logger)
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLog()
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("docqr %s\nbuilt: %s\n", Version, BuildTime))
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (.yaml or .toml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newEmbedCmd())
	root.AddCommand(newPlaceCmd())
	root.AddCommand(newCodeCmd())
	root.AddCommand(newServeCmd())
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCommand(os.Stderr)
	return root.ExecuteContext(ctx)
}
