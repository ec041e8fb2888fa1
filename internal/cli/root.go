// Package cli implements the faktura command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/config"
	"github.com/garyjia/faktura/internal/container"
	"github.com/garyjia/faktura/pkg/utils"
)

// DefaultConfigPath is read when --config is not given and the file exists
const DefaultConfigPath = "configs/config.yaml"

var version = "1.0.0"

type app struct {
	configPath string
}

// NewRootCommand builds the faktura command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "faktura",
		Short: "Polish VAT invoices and proformas with KSeF export",
		Long: `faktura issues VAT invoices and proformas, keeps the buyer book and the
invoice history, renders FA(2) XML for KSeF and serves the HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath, "path to the YAML configuration file")

	root.AddCommand(
		a.validateCommand(),
		a.wordsCommand(),
		a.numberCommand(),
		a.invoicesCommand(),
		a.serveCommand(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the configured file. A missing default file falls back to defaults
// and environment.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := a.configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

// withContainer starts the application components, runs fn and closes them again
func (a *app) withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := utils.CLILogger(cfg.Logger.Level)
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Warn("Failed to close container", zap.Error(cerr))
		}
	}()

	return fn(ctx, c)
}
