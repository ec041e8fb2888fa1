// Package http exposes the invoicing services over a JSON API.
// It is a thin adapter that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/service"
	"github.com/garyjia/faktura/internal/config"
	"github.com/garyjia/faktura/internal/models"
	"github.com/garyjia/faktura/internal/registry"
)

const shutdownTimeout = 10 * time.Second

// CompanyLookup resolves a KRS number into company details
type CompanyLookup interface {
	GetDetails(ctx context.Context, krsNumber string) (*registry.Company, error)
}

// RegisterWriter renders invoices as a spreadsheet register
type RegisterWriter interface {
	Write(w io.Writer, invoices []models.Invoice) error
}

// ReadinessChecker reports whether the backing components are initialized
type ReadinessChecker interface {
	Ready() bool
}

// Dependencies are the services served by the API
type Dependencies struct {
	Seller   service.SellerService
	Buyer    service.BuyerService
	Invoice  service.InvoiceService
	KSeF     service.KSeFService
	Registry CompanyLookup
	Register RegisterWriter
	Ready    ReadinessChecker // optional
}

// Server is the HTTP server adapter
type Server struct {
	config     config.ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     *zap.Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		router:   gin.New(),
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// corsMiddleware adds CORS headers and answers preflight requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggingMiddleware logs every request once it completes
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/seller", h.GetSeller)
		api.PUT("/seller", h.SaveSeller)

		api.GET("/buyers", h.ListBuyers)
		api.POST("/buyers", h.CreateBuyer)
		api.PUT("/buyers/:id", h.UpdateBuyer)
		api.DELETE("/buyers/:id", h.DeleteBuyer)

		api.GET("/invoices", h.ListInvoices)
		api.POST("/invoices", h.SaveInvoice)
		api.GET("/invoices/draft", h.NewDraft)
		api.GET("/invoices/next-number", h.NextNumber)
		api.GET("/invoices/export", h.ExportInvoices)
		api.POST("/invoices/import", h.ImportInvoices)
		api.GET("/invoices/register.xlsx", h.ExportRegister)
		api.GET("/invoices/:id", h.GetInvoice)
		api.PATCH("/invoices/:id", h.UpdateInvoice)
		api.DELETE("/invoices/:id", h.DeleteInvoice)
		api.POST("/invoices/:id/convert", h.ConvertInvoice)
		api.GET("/invoices/:id/totals", h.InvoiceTotals)
		api.GET("/invoices/:id/xml", h.InvoiceXML)
		api.POST("/invoices/:id/ksef/send", h.SendToKSeF)
		api.POST("/invoices/:id/ksef/status", h.CheckKSeFStatus)
		api.GET("/invoices/:id/ksef/upo", h.DownloadUPO)
		api.GET("/invoices/:id/ksef/actions", h.KSeFActions)

		api.GET("/ksef/config", h.GetKSeFConfig)
		api.PUT("/ksef/config", h.SaveKSeFConfig)

		api.GET("/registry/krs/:krs", h.LookupKRS)
		api.POST("/validate", h.Validate)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", s.config.Addr()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return fmt.Errorf("failed to serve http: %w", err)
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return s.config.Addr()
}
