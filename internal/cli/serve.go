package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/config"
	"github.com/garyjia/faktura/internal/container"
	httpapi "github.com/garyjia/faktura/internal/interfaces/http"
	"github.com/garyjia/faktura/pkg/utils"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the KSeF status poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, err := utils.NewLogger(utils.LoggerConfig{
				Level:      cfg.Logger.Level,
				OutputPath: cfg.Logger.OutputPath,
				Format:     cfg.Logger.Format,
			})
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return Serve(ctx, cfg, logger)
		},
	}
}

// Serve starts every component and the HTTP server, blocking until ctx is cancelled
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting faktura", zap.String("version", version), zap.String("address", cfg.Server.Addr()))

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	if err := c.StartWorkers(ctx); err != nil {
		return err
	}

	services := c.Services()
	server := httpapi.NewServer(cfg.Server, httpapi.Dependencies{
		Seller:   services.Seller,
		Buyer:    services.Buyer,
		Invoice:  services.Invoice,
		KSeF:     services.KSeF,
		Registry: c.Registry(),
		Register: c.Register(),
		Ready:    c,
	}, logger.Named("http"))

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("faktura stopped")
	return nil
}
