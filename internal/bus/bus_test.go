package bus

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingHandler struct {
	eventType EventType
	calls     atomic.Int64
	err       error
	panics    bool
}

func (h *countingHandler) Type() EventType { return h.eventType }

func (h *countingHandler) Handle(ctx context.Context, payload []byte) error {
	h.calls.Add(1)
	if h.panics {
		panic("handler exploded")
	}
	return h.err
}

func TestBusPublishSync(t *testing.T) {
	t.Run("delivers payload to the registered handler", func(t *testing.T) {
		b := New()
		h := &countingHandler{eventType: EvtOpenPositionIntent}
		b.Register(h)
		b.Start()
		defer b.Stop()

		evt, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "AAPL"})
		assert.NoError(t, err)
		assert.NoError(t, b.PublishSync(context.Background(), evt))
		assert.Equal(t, int64(1), h.calls.Load())
	})

	t.Run("handler error reaches the publisher", func(t *testing.T) {
		b := New()
		h := &countingHandler{eventType: EvtOpenPositionIntent, err: assert.AnError}
		b.Register(h)
		b.Start()
		defer b.Stop()

		evt, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "AAPL"})
		assert.NoError(t, err)
		assert.ErrorIs(t, b.PublishSync(context.Background(), evt), assert.AnError)
	})

	t.Run("handler panic is contained and surfaced", func(t *testing.T) {
		b := New()
		h := &countingHandler{eventType: EvtOpenPositionIntent, panics: true}
		b.Register(h)
		b.Start()
		defer b.Stop()

		evt, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "AAPL"})
		assert.NoError(t, err)
		assert.ErrorContains(t, b.PublishSync(context.Background(), evt), "panic")

		// The loop survives.
		evt2, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "MSFT"})
		assert.NoError(t, err)
		_ = b.PublishSync(context.Background(), evt2)
		assert.Equal(t, int64(2), h.calls.Load())
	})

	t.Run("context cancellation unblocks the publisher", func(t *testing.T) {
		b := New()
		// No handler registered: PublishSync would otherwise block until
		// the unknown-type warning path closes the reply channel.
		b.Start()
		defer b.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		evt, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "AAPL"})
		assert.NoError(t, err)
		// The no-handler path closes ReplyCh with a nil error, so this
		// returns promptly either way.
		_ = b.PublishSync(ctx, evt)
	})
}

func TestNewEnvelope(t *testing.T) {
	evt, err := NewEnvelope(EvtOpenPositionIntent, OpenPositionIntent{Symbol: "AAPL", Shares: 100})
	assert.NoError(t, err)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, EvtOpenPositionIntent, evt.Type)

	var intent OpenPositionIntent
	assert.NoError(t, json.Unmarshal(evt.Payload, &intent))
	assert.Equal(t, "AAPL", intent.Symbol)
	assert.Equal(t, 100, intent.Shares)
}
