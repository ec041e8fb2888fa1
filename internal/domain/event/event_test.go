package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{eventType: TypeSellerSaved, want: true},
		{eventType: TypeBuyerDeleted, want: true},
		{eventType: TypeInvoicesImported, want: true},
		{eventType: TypeKSeFStatusChanged, want: true},
		{eventType: "invoice.archived", want: false},
		{eventType: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeInvoiceCreated, "inv-1", nil)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "inv-1", evt.AggregateID)
	assert.NotNil(t, evt.Payload)
	assert.False(t, evt.Timestamp.IsZero())

	other := NewEvent(TypeInvoiceCreated, "inv-1", nil)
	assert.NotEqual(t, evt.ID, other.ID)
}

func TestEvent_WithPayloadIsImmutable(t *testing.T) {
	original := NewEvent(TypeKSeFStatusChanged, "inv-1", map[string]any{"status": "sent"})
	updated := original.WithPayload("count", 3)

	assert.Equal(t, "sent", updated.GetPayloadString("status"))
	assert.Equal(t, int64(3), updated.GetPayloadInt("count"))
	assert.Equal(t, original.ID, updated.ID)

	_, exists := original.Payload["count"]
	assert.False(t, exists)
	assert.Equal(t, int64(0), original.GetPayloadInt("count"))
	assert.Empty(t, original.GetPayloadString("missing"))
}
