package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/application/dispatcher"
	"github.com/garyjia/faktura/internal/application/port"
	"github.com/garyjia/faktura/internal/domain/event"
	"github.com/garyjia/faktura/internal/domain/workflow"
	"github.com/garyjia/faktura/internal/ksef"
	"github.com/garyjia/faktura/internal/models"
)

const msgUnknownError = "Nieznany błąd"

// outcomeWriteTimeout bounds the writes that record a send's outcome once the gateway has
// answered
const outcomeWriteTimeout = 5 * time.Second

// KSeFService submits invoices to the gateway and tracks their status
type KSeFService interface {
	Configure(ctx context.Context, cfg models.KSeFConfig) error
	Restore(ctx context.Context) error
	Config(ctx context.Context) (*models.KSeFConfig, error)
	Send(ctx context.Context, id string) (*models.Invoice, error)
	CheckStatus(ctx context.Context, id string) (*models.Invoice, error)
	DownloadUPO(ctx context.Context, id string) (string, error)
	PendingInvoices(ctx context.Context) ([]models.Invoice, error)
	Actions(ctx context.Context, id string) (*KSeFActions, error)
}

// KSeFActions is the submission status of an invoice with the KSeF actions it allows
type KSeFActions struct {
	Status  models.KSeFStatus `json:"status"`
	Actions []workflow.Action `json:"actions"`
}

type ksefServiceImpl struct {
	gateway  port.KSeFGateway
	configs  port.KSeFConfigRepository
	invoices port.InvoiceRepository
	now      func() time.Time
	publisher
}

// NewKSeFService creates a new KSeFService
func NewKSeFService(
	gateway port.KSeFGateway,
	configs port.KSeFConfigRepository,
	invoices port.InvoiceRepository,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) KSeFService {
	return &ksefServiceImpl{
		gateway:   gateway,
		configs:   configs,
		invoices:  invoices,
		now:       time.Now,
		publisher: publisher{dispatcher: d, logger: logger},
	}
}

// Configure applies and persists gateway credentials
func (s *ksefServiceImpl) Configure(ctx context.Context, cfg models.KSeFConfig) error {
	if err := s.gateway.Configure(cfg); err != nil {
		if errors.Is(err, ksef.ErrInvalidEnvironment) {
			return invalid("environment", string(cfg.Environment), "expected test or production")
		}
		return err
	}
	if err := s.configs.Set(ctx, cfg); err != nil {
		return fmt.Errorf("failed to store KSeF config: %w", err)
	}
	return nil
}

// Restore configures the gateway from the persisted credentials, if any
func (s *ksefServiceImpl) Restore(ctx context.Context) error {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load KSeF config: %w", err)
	}
	if cfg == nil {
		return nil
	}
	if err := s.gateway.Configure(*cfg); err != nil {
		return fmt.Errorf("failed to restore KSeF config: %w", err)
	}
	return nil
}

func (s *ksefServiceImpl) Config(ctx context.Context) (*models.KSeFConfig, error) {
	cfg, err := s.configs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load KSeF config: %w", err)
	}
	return cfg, nil
}

// Send submits a VAT invoice. The invoice is marked pending for the duration of the call
// and ends up sent with a reference number or error with the gateway's message. The outcome
// is written even when ctx ends during the call; if that write fails the previous status is
// restored so the invoice can be sent again.
func (s *ksefServiceImpl) Send(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.IsProforma() {
		return nil, ksef.ErrProformaNotAllowed
	}

	previous := inv.SubmissionStatus()
	machine := workflow.NewSubmissionMachine(workflow.FromStatus(previous))
	if err := machine.Fire(workflow.TriggerSubmit); err != nil {
		return nil, invalid("ksef.status", string(previous), "invoice was already submitted")
	}

	pending := machine.State().Status()
	if _, err := s.invoices.UpdateKSeF(ctx, id, models.KSeFStatePatch{Status: &pending}); err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}

	result := s.gateway.SendInvoice(ctx, inv)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	patch, err := s.outcomePatch(machine, id, result)
	if err != nil {
		s.restoreStatus(writeCtx, id, previous)
		return nil, err
	}

	updated, err := s.invoices.UpdateKSeF(writeCtx, id, patch)
	if err != nil {
		s.logger.Error("Failed to record KSeF submission outcome",
			zap.String("invoice_id", id),
			zap.Bool("success", result.Success),
			zap.String("reference_number", result.ReferenceNumber),
			zap.Error(err))
		s.restoreStatus(writeCtx, id, previous)
		return nil, notFound(err, ErrInvoiceNotFound)
	}

	s.statusChanged(writeCtx, updated, previous)
	return updated, nil
}

// outcomePatch moves the machine past pending and builds the matching state patch
func (s *ksefServiceImpl) outcomePatch(machine *workflow.Machine, id string, result ksef.SendResult) (models.KSeFStatePatch, error) {
	if result.Success {
		if err := machine.Fire(workflow.TriggerConfirm); err != nil {
			return models.KSeFStatePatch{}, err
		}
		sent := machine.State().Status()
		sentAt := s.now().UTC()
		cleared := ""
		return models.KSeFStatePatch{
			Status:          &sent,
			ReferenceNumber: &result.ReferenceNumber,
			SentAt:          &sentAt,
			ErrorMessage:    &cleared,
		}, nil
	}

	if err := machine.Fire(workflow.TriggerFail); err != nil {
		return models.KSeFStatePatch{}, err
	}
	failed := machine.State().Status()
	message := result.ErrorMessage
	if message == "" {
		message = msgUnknownError
	}
	s.logger.Warn("KSeF submission failed",
		zap.String("invoice_id", id),
		zap.String("error_message", message))
	return models.KSeFStatePatch{Status: &failed, ErrorMessage: &message}, nil
}

// restoreStatus puts back the status an invoice had before a send
func (s *ksefServiceImpl) restoreStatus(ctx context.Context, id string, status models.KSeFStatus) {
	if _, err := s.invoices.UpdateKSeF(ctx, id, models.KSeFStatePatch{Status: &status}); err != nil {
		s.logger.Error("Failed to restore KSeF status",
			zap.String("invoice_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// CheckStatus asks the gateway about a submitted invoice and folds the answer into the
// invoice: accepted and rejected are final, anything else leaves it sent. A final decision
// is returned as stored without asking the gateway again.
func (s *ksefServiceImpl) CheckStatus(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.KSeF == nil || inv.KSeF.ReferenceNumber == "" {
		return nil, ErrNotSubmitted
	}

	previous := inv.SubmissionStatus()
	machine := workflow.NewSubmissionMachine(workflow.FromStatus(previous))
	if machine.State().IsTerminal() {
		return inv, nil
	}

	result, err := s.gateway.CheckStatus(ctx, inv.KSeF.ReferenceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check KSeF status of invoice %s: %w", id, err)
	}

	switch result.Status {
	case models.KSeFStatusAccepted:
		err = machine.Fire(workflow.TriggerAccept)
	case models.KSeFStatusRejected:
		err = machine.Fire(workflow.TriggerReject)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply KSeF status of invoice %s: %w", id, err)
	}

	status := machine.State().Status()
	patch := models.KSeFStatePatch{Status: &status}
	if result.KSeFNumber != "" {
		patch.KSeFNumber = &result.KSeFNumber
	}
	if result.UPO != "" {
		patch.UPO = &result.UPO
	}
	if result.ErrorMessage != "" {
		patch.ErrorMessage = &result.ErrorMessage
	}

	updated, err := s.invoices.UpdateKSeF(ctx, id, patch)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}

	s.statusChanged(ctx, updated, previous)
	return updated, nil
}

// DownloadUPO returns the confirmation of receipt of a submitted invoice
func (s *ksefServiceImpl) DownloadUPO(ctx context.Context, id string) (string, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return "", err
	}
	if inv.KSeF == nil || inv.KSeF.ReferenceNumber == "" {
		return "", ErrNotSubmitted
	}

	upo, err := s.gateway.DownloadUPO(ctx, inv.KSeF.ReferenceNumber)
	if err != nil {
		return "", fmt.Errorf("failed to download UPO of invoice %s: %w", id, err)
	}
	return upo, nil
}

// PendingInvoices returns submitted invoices the gateway has not decided on yet
func (s *ksefServiceImpl) PendingInvoices(ctx context.Context) ([]models.Invoice, error) {
	invoices, err := s.invoices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	pending := make([]models.Invoice, 0)
	for _, inv := range invoices {
		if inv.SubmissionStatus().InFlight() && inv.KSeF.ReferenceNumber != "" {
			pending = append(pending, inv)
		}
	}
	return pending, nil
}

// Actions reports which KSeF operations the invoice currently allows. Proformas allow none.
func (s *ksefServiceImpl) Actions(ctx context.Context, id string) (*KSeFActions, error) {
	inv, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	status := inv.SubmissionStatus()
	actions := &KSeFActions{Status: status, Actions: []workflow.Action{}}
	if !inv.IsProforma() {
		actions.Actions = workflow.NewSubmissionMachine(workflow.FromStatus(status)).Actions()
	}
	return actions, nil
}

func (s *ksefServiceImpl) getInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	return inv, nil
}

func (s *ksefServiceImpl) statusChanged(ctx context.Context, inv *models.Invoice, previous models.KSeFStatus) {
	current := inv.SubmissionStatus()
	if current == previous {
		return
	}

	s.logger.Info("KSeF status changed",
		zap.String("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("from", string(previous)),
		zap.String("to", string(current)))
	s.publish(ctx, event.TypeKSeFStatusChanged, inv.ID, map[string]any{
		"from": string(previous),
		"to":   string(current),
	})
}
