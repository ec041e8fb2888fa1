package ksef

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

// sequence returns the given values in order, repeating the last one
func sequence(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

var clientNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

func newTestClient(random func() float64) *Client {
	return NewClient(zap.NewNop(),
		WithRandom(random),
		WithClock(func() time.Time { return clientNow }),
	)
}

func configured(t *testing.T, c *Client) *Client {
	t.Helper()
	require.NoError(t, c.Configure(models.KSeFConfig{Environment: models.KSeFEnvironmentTest, Token: "token"}))
	return c
}

func TestClient_Configure(t *testing.T) {
	c := newTestClient(sequence(0.5))
	assert.False(t, c.IsConfigured())

	_, err := c.BaseURL()
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = c.Configure(models.KSeFConfig{Environment: "staging", Token: "x"})
	assert.ErrorIs(t, err, ErrInvalidEnvironment)

	require.NoError(t, c.Configure(models.KSeFConfig{Environment: models.KSeFEnvironmentTest}))
	assert.False(t, c.IsConfigured(), "an empty token is not a usable configuration")

	require.NoError(t, c.Configure(models.KSeFConfig{Environment: models.KSeFEnvironmentProduction, Token: "t"}))
	assert.True(t, c.IsConfigured())
	url, err := c.BaseURL()
	require.NoError(t, err)
	assert.Equal(t, ProductionBaseURL, url)
}

func TestClient_SendInvoice(t *testing.T) {
	ctx := context.Background()

	result := newTestClient(sequence(0.5)).SendInvoice(ctx, vatInvoice())
	assert.False(t, result.Success)
	assert.Equal(t, "KSeF nie skonfigurowany", result.ErrorMessage)

	c := configured(t, newTestClient(sequence(0.5)))

	proforma := vatInvoice()
	proforma.DocumentType = models.DocumentTypeProforma
	result = c.SendInvoice(ctx, proforma)
	assert.False(t, result.Success)
	assert.Equal(t, "Proforma nie może być wysłana do KSeF", result.ErrorMessage)

	result = c.SendInvoice(ctx, vatInvoice())
	require.True(t, result.Success)
	assert.Regexp(t, regexp.MustCompile(`^REF_1736942400000_[0-9a-z]{9}$`), result.ReferenceNumber)
}

func TestClient_SendInvoiceHonoursContext(t *testing.T) {
	c := configured(t, newTestClient(sequence(0.5)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.SendInvoice(ctx, vatInvoice())
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestClient_CheckStatus(t *testing.T) {
	ctx := context.Background()

	_, err := newTestClient(sequence(0.9)).CheckStatus(ctx, "REF_1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	pending := configured(t, newTestClient(sequence(0.3)))
	status, err := pending.CheckStatus(ctx, "REF_1")
	require.NoError(t, err)
	assert.Equal(t, models.KSeFStatusPending, status.Status)
	assert.Empty(t, status.KSeFNumber)

	accepted := configured(t, newTestClient(sequence(0.9, 0.123456)))
	status, err = accepted.CheckStatus(ctx, "REF_1")
	require.NoError(t, err)
	assert.Equal(t, models.KSeFStatusAccepted, status.Status)
	assert.Equal(t, "FA/2025/123456", status.KSeFNumber)
	assert.Equal(t, "UPO_REF_1", status.UPO)
}

func TestClient_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(sequence(0))

	_, err := c.InitSession(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	configured(t, c)
	session, err := c.InitSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session_1736942400000_000000000", session.Token)
	assert.Equal(t, clientNow.Add(2*time.Hour), session.ExpiresAt)

	require.NoError(t, c.TerminateSession(ctx))
	require.NoError(t, c.TerminateSession(ctx))
}

func TestClient_DownloadUPO(t *testing.T) {
	ctx := context.Background()

	_, err := newTestClient(sequence(0)).DownloadUPO(ctx, "REF_1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	upo, err := configured(t, newTestClient(sequence(0))).DownloadUPO(ctx, "REF_<1>")
	require.NoError(t, err)
	assert.Contains(t, upo, "<NumerReferencyjny>REF_&lt;1&gt;</NumerReferencyjny>")
	assert.Contains(t, upo, "<DataPrzyjecia>2025-01-15T12:00:00.000Z</DataPrzyjecia>")
	assert.Contains(t, upo, "<Status>PRZYJĘTA</Status>")
}
