package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/faktura/internal/domain/event"
)

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher(WithLogger(zap.NewNop()))
	var calls []string

	d.Subscribe(event.TypeInvoiceCreated, func(_ context.Context, evt *event.Event) error {
		calls = append(calls, "first:"+evt.AggregateID)
		return nil
	})
	d.SubscribeNamed(event.TypeInvoiceCreated, "second", func(_ context.Context, evt *event.Event) error {
		calls = append(calls, "second:"+evt.AggregateID)
		return nil
	})
	d.Subscribe(event.TypeInvoiceDeleted, func(context.Context, *event.Event) error {
		calls = append(calls, "deleted")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceCreated, "inv-1", nil)))
	assert.Equal(t, []string{"first:inv-1", "second:inv-1"}, calls)
}

func TestDispatch_NoHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeSellerSaved, "seller-1", nil)))
}

func TestDispatch_StopsOnFirstError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	reached := false

	d.SubscribeNamed(event.TypeBuyerCreated, "failing", func(context.Context, *event.Event) error { return boom })
	d.Subscribe(event.TypeBuyerCreated, func(context.Context, *event.Event) error {
		reached = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeBuyerCreated, "b-1", nil))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, reached)
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeBuyerUpdated, func(context.Context, *event.Event) error { panic("bad handler") })

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeBuyerUpdated, "b-1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: bad handler")
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())
	assert.Error(t, d.Close())

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceCreated, "inv-1", nil))
	assert.ErrorIs(t, err, ErrClosed)
}
