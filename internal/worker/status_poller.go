package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// StatusChecker is the part of the KSeF service the poller drives
type StatusChecker interface {
	PendingInvoices(ctx context.Context) ([]models.Invoice, error)
	CheckStatus(ctx context.Context, id string) (*models.Invoice, error)
}

// StatusPoller periodically asks the gateway about submitted invoices that are still in
// flight and folds the answers back into the invoices
type StatusPoller struct {
	checker StatusChecker
	logger  *zap.Logger

	pollInterval time.Duration
	checkTimeout time.Duration

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewStatusPoller creates a status poller. An interval of zero disables polling.
func NewStatusPoller(checker StatusChecker, interval, checkTimeout time.Duration, logger *zap.Logger) *StatusPoller {
	if checkTimeout <= 0 {
		checkTimeout = 30 * time.Second
	}
	return &StatusPoller{
		checker:      checker,
		logger:       logger,
		pollInterval: interval,
		checkTimeout: checkTimeout,
	}
}

// Start launches the polling loop
func (p *StatusPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("status poller is already running")
	}
	if p.pollInterval <= 0 {
		p.logger.Info("StatusPoller disabled")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.isRunning = true

	p.logger.Info("StatusPoller started", zap.Duration("poll_interval", p.pollInterval))

	go p.pollLoop(loopCtx, p.done)
	return nil
}

// Stop cancels the loop and waits for the current poll to finish
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return
	}
	p.isRunning = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("StatusPoller stopped")
}

// Name returns the worker name for identification
func (p *StatusPoller) Name() string {
	return "StatusPoller"
}

func (p *StatusPoller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Poll loop context cancelled")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll checks every in-flight invoice once and returns how many reached a final status
func (p *StatusPoller) Poll(ctx context.Context) int {
	invoices, err := p.checker.PendingInvoices(ctx)
	if err != nil {
		p.logger.Error("Failed to get invoices for polling", zap.Error(err))
		return 0
	}
	if len(invoices) == 0 {
		return 0
	}

	p.logger.Debug("Polling KSeF status", zap.Int("count", len(invoices)))

	checked, resolved := 0, 0
	for _, inv := range invoices {
		if ctx.Err() != nil {
			break
		}

		checkCtx, cancel := context.WithTimeout(ctx, p.checkTimeout)
		updated, err := p.checker.CheckStatus(checkCtx, inv.ID)
		cancel()
		if err != nil {
			p.logger.Warn("Failed to check KSeF status",
				zap.String("invoice_id", inv.ID),
				zap.String("reference_number", inv.KSeF.ReferenceNumber),
				zap.Error(err))
			continue
		}

		checked++
		if !updated.SubmissionStatus().InFlight() {
			resolved++
		}
	}

	if checked > 0 {
		p.logger.Info("Status polling completed",
			zap.Int("checked", checked),
			zap.Int("resolved", resolved))
	}
	return resolved
}
