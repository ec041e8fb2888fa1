package ksef

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// Gateway endpoints per environment
const (
	TestBaseURL       = "https://ksef-test.mf.gov.pl/api"
	ProductionBaseURL = "https://ksef.mf.gov.pl/api"
)

// DefaultTimeout bounds every gateway call
const DefaultTimeout = 30 * time.Second

const (
	sessionLifetime = 2 * time.Hour
	acceptThreshold = 0.3
	base36Alphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"

	msgNotConfigured    = "KSeF nie skonfigurowany"
	msgProformaRejected = "Proforma nie może być wysłana do KSeF"
)

var (
	// ErrNotConfigured is returned by calls that need gateway credentials
	ErrNotConfigured = errors.New("KSeF client not configured")
	// ErrInvalidEnvironment is returned for environments other than test and production
	ErrInvalidEnvironment = errors.New("invalid KSeF environment")
)

// Session is an open gateway session
type Session struct {
	Token     string    `json:"sessionToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendResult is the outcome of an invoice submission
type SendResult struct {
	Success         bool   `json:"success"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	KSeFNumber      string `json:"ksefNumber,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// StatusResult is the gateway's view of a submitted invoice
type StatusResult struct {
	Status       models.KSeFStatus `json:"status"` // pending, accepted or rejected
	KSeFNumber   string            `json:"ksefNumber,omitempty"`
	UPO          string            `json:"upo,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

// Client talks to the KSeF gateway. The wire protocol is simulated: submissions are
// accepted with a generated reference and status checks resolve at random.
type Client struct {
	mu      sync.Mutex
	config  *models.KSeFConfig
	session *Session

	timeout time.Duration
	random  func() float64
	now     func() time.Time
	logger  *zap.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRandom replaces the random source used by the simulated gateway
func WithRandom(random func() float64) Option {
	return func(c *Client) { c.random = random }
}

// WithClock replaces the clock
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates an unconfigured client
func NewClient(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		random:  rand.Float64,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure sets the credentials and drops any open session
func (c *Client) Configure(cfg models.KSeFConfig) error {
	if cfg.Environment != models.KSeFEnvironmentTest && cfg.Environment != models.KSeFEnvironmentProduction {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, cfg.Environment)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config = &cfg
	c.session = nil
	c.logger.Info("KSeF client configured", zap.String("environment", string(cfg.Environment)))
	return nil
}

// IsConfigured reports whether credentials with a non-empty token are set
func (c *Client) IsConfigured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config != nil && c.config.Token != ""
}

// BaseURL returns the endpoint of the configured environment
func (c *Client) BaseURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return "", ErrNotConfigured
	}
	if c.config.Environment == models.KSeFEnvironmentProduction {
		return ProductionBaseURL, nil
	}
	return TestBaseURL, nil
}

// InitSession opens a gateway session valid for two hours
func (c *Client) InitSession(ctx context.Context) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return nil, ErrNotConfigured
	}
	return c.initSessionLocked(ctx)
}

func (c *Client) initSessionLocked(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to init KSeF session: %w", err)
	}

	now := c.now()
	session := &Session{
		Token:     fmt.Sprintf("session_%d_%s", now.UnixMilli(), c.randomToken(9)),
		ExpiresAt: now.Add(sessionLifetime).UTC(),
	}
	c.session = session
	c.logger.Debug("KSeF session opened", zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// SendInvoice submits a VAT invoice. Failures are reported in the result, never as an
// error, so callers can fold them into the invoice's submission state.
func (c *Client) SendInvoice(ctx context.Context, inv *models.Invoice) SendResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return SendResult{ErrorMessage: msgNotConfigured}
	}
	if inv.IsProforma() {
		return SendResult{ErrorMessage: msgProformaRejected}
	}

	if c.session == nil || !c.now().Before(c.session.ExpiresAt) {
		if _, err := c.initSessionLocked(ctx); err != nil {
			return SendResult{ErrorMessage: err.Error()}
		}
	}

	payload, err := BuildXML(inv)
	if err != nil {
		return SendResult{ErrorMessage: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return SendResult{ErrorMessage: fmt.Sprintf("failed to send invoice: %v", err)}
	}

	ref := fmt.Sprintf("REF_%d_%s", c.now().UnixMilli(), c.randomToken(9))
	c.logger.Info("Invoice submitted to KSeF",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reference_number", ref),
		zap.Int("payload_bytes", len(payload)))

	return SendResult{Success: true, ReferenceNumber: ref}
}

// CheckStatus asks the gateway for the processing state of a submission
func (c *Client) CheckStatus(ctx context.Context, referenceNumber string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return StatusResult{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return StatusResult{}, fmt.Errorf("failed to check KSeF status: %w", err)
	}

	if c.random() <= acceptThreshold {
		return StatusResult{Status: models.KSeFStatusPending}, nil
	}

	return StatusResult{
		Status:     models.KSeFStatusAccepted,
		KSeFNumber: fmt.Sprintf("FA/%d/%d", c.now().Year(), int(c.random()*1_000_000)),
		UPO:        "UPO_" + referenceNumber,
	}, nil
}

type upoXML struct {
	XMLName           xml.Name `xml:"UPO"`
	NumerReferencyjny string   `xml:"NumerReferencyjny"`
	DataPrzyjecia     string   `xml:"DataPrzyjecia"`
	Status            string   `xml:"Status"`
}

// DownloadUPO fetches the official confirmation of receipt for a submission
func (c *Client) DownloadUPO(ctx context.Context, referenceNumber string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config == nil {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("failed to download UPO: %w", err)
	}

	body, err := xml.MarshalIndent(upoXML{
		NumerReferencyjny: referenceNumber,
		DataPrzyjecia:     c.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Status:            "PRZYJĘTA",
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode UPO: %w", err)
	}
	return xml.Header + string(body), nil
}

// TerminateSession closes the open session, if any
func (c *Client) TerminateSession(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	c.session = nil
	c.logger.Debug("KSeF session terminated")
	return nil
}

func (c *Client) randomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[int(c.random()*float64(len(base36Alphabet)))%len(base36Alphabet)]
	}
	return string(b)
}
