package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/models"
)

type mockChecker struct {
	mu      sync.Mutex
	pending []models.Invoice
	results map[string]models.KSeFStatus
	failing map[string]bool
	checked []string
	polled  chan struct{}
	listErr error
}

func (m *mockChecker) PendingInvoices(context.Context) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.polled != nil {
		select {
		case m.polled <- struct{}{}:
		default:
		}
	}
	return m.pending, m.listErr
}

func (m *mockChecker) CheckStatus(_ context.Context, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, id)
	if m.failing[id] {
		return nil, errors.New("gateway down")
	}
	return &models.Invoice{ID: id, KSeF: &models.KSeFState{Status: m.results[id]}}, nil
}

func inFlight(id string) models.Invoice {
	return models.Invoice{ID: id, KSeF: &models.KSeFState{Status: models.KSeFStatusSent, ReferenceNumber: "REF_" + id}}
}

func TestStatusPoller_Poll(t *testing.T) {
	checker := &mockChecker{
		pending: []models.Invoice{inFlight("a"), inFlight("b"), inFlight("c")},
		results: map[string]models.KSeFStatus{
			"a": models.KSeFStatusAccepted,
			"b": models.KSeFStatusSent,
		},
		failing: map[string]bool{"c": true},
	}
	poller := NewStatusPoller(checker, time.Minute, time.Second, zap.NewNop())

	resolved := poller.Poll(context.Background())
	assert.Equal(t, 1, resolved)
	assert.Equal(t, []string{"a", "b", "c"}, checker.checked)
}

func TestStatusPoller_PollListError(t *testing.T) {
	checker := &mockChecker{listErr: errors.New("corrupt")}
	poller := NewStatusPoller(checker, time.Minute, time.Second, zap.NewNop())

	assert.Zero(t, poller.Poll(context.Background()))
	assert.Empty(t, checker.checked)
}

func TestStatusPoller_StartStop(t *testing.T) {
	checker := &mockChecker{
		pending: []models.Invoice{inFlight("a")},
		results: map[string]models.KSeFStatus{"a": models.KSeFStatusAccepted},
		polled:  make(chan struct{}, 1),
	}
	poller := NewStatusPoller(checker, 5*time.Millisecond, time.Second, zap.NewNop())

	require.NoError(t, poller.Start(context.Background()))
	assert.Error(t, poller.Start(context.Background()))

	select {
	case <-checker.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never polled")
	}

	poller.Stop()
	poller.Stop()
	assert.Equal(t, "StatusPoller", poller.Name())
}

func TestStatusPoller_Disabled(t *testing.T) {
	checker := &mockChecker{polled: make(chan struct{}, 1)}
	poller := NewStatusPoller(checker, 0, 0, zap.NewNop())

	require.NoError(t, poller.Start(context.Background()))
	poller.Stop()

	select {
	case <-checker.polled:
		t.Fatal("disabled poller polled")
	case <-time.After(20 * time.Millisecond):
	}
}

type fakeWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *fakeWorker) Start(context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *fakeWorker) Stop()        { *w.log = append(*w.log, "stop "+w.name) }
func (w *fakeWorker) Name() string { return w.name }

func TestManager(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log})
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
	m.StopAll()
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log, startErr: errors.New("boom")})

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
