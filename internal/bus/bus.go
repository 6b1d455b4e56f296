package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/logger"

	"github.com/google/uuid"
)

type EventType string

const (
	// EvtOpenPositionIntent asks the execution gateway to open a bracket.
	EvtOpenPositionIntent EventType = "open_position_intent"
)

// Envelope wraps one event. Payload is the JSON encoding of the typed
// payload struct for the event type.
type Envelope struct {
	ID        string
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time
	ReplyCh   chan error
}

// NewEnvelope marshals payload and stamps an id.
func NewEnvelope(t EventType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("bus: marshal %s payload: %w", t, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

// Handler consumes one event type.
type Handler interface {
	Type() EventType
	Handle(ctx context.Context, payload []byte) error
}

// Bus decouples signal emission from execution. A single goroutine drains
// the queue, so consumers run sequentially and never race the publisher.
type Bus struct {
	handlers map[EventType]Handler

	msgCh  chan Envelope
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New() *Bus {
	return &Bus{
		handlers: make(map[EventType]Handler),
		msgCh:    make(chan Envelope, 100),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a handler. A handler for the same event type is replaced.
func (b *Bus) Register(h Handler) {
	if h == nil {
		return
	}
	b.handlers[h.Type()] = h
}

func (b *Bus) Start() {
	b.wg.Add(1)
	go b.runLoop()
}

func (b *Bus) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Bus) Publish(evt Envelope) error {
	select {
	case b.msgCh <- evt:
		return nil
	case <-b.stopCh:
		return fmt.Errorf("bus is stopped")
	}
}

// PublishSync publishes and waits for the handler result. Used by the
// signal detector so an execution failure surfaces in the task that
// produced the intent.
func (b *Bus) PublishSync(ctx context.Context, evt Envelope) error {
	if evt.ReplyCh == nil {
		evt.ReplyCh = make(chan error, 1)
	}
	if err := b.Publish(evt); err != nil {
		return err
	}
	select {
	case err := <-evt.ReplyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-b.stopCh:
		return fmt.Errorf("bus stopped during sync publish")
	}
}

func (b *Bus) runLoop() {
	defer b.wg.Done()
	logger.Infof("Bus: started")
	for {
		select {
		case evt := <-b.msgCh:
			b.handleEvent(evt)
		case <-b.stopCh:
			logger.Infof("Bus: stopping")
			return
		}
	}
}

// handleEvent dispatches one envelope. Panics are contained here so a bad
// handler cannot take the loop down; the ReplyCh is always closed to
// unblock synchronous publishers.
func (b *Bus) handleEvent(evt Envelope) {
	var err error
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Bus: panic handling %s: %v", evt.Type, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
		if evt.ReplyCh != nil {
			evt.ReplyCh <- err
			close(evt.ReplyCh)
		}
		if dur := time.Since(start); dur > 100*time.Millisecond {
			logger.Warnf("Bus: slow event %s took %v", evt.Type, dur)
		}
	}()

	handler, ok := b.handlers[evt.Type]
	if !ok {
		logger.Warnf("Bus: no handler registered for event type %s", evt.Type)
		return
	}

	err = handler.Handle(context.Background(), evt.Payload)
	if err != nil {
		logger.Errorf("Bus: handler for %s failed: %v", evt.Type, err)
	}
}
