package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/bus"
	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/domain"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/broker"
	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
	"github.com/frankgibbs/algolearn-orb/internal/store"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler consumes open-position intents from the bus and turns each one
// into a bracket order plus a PENDING position row. It is the only
// component that creates positions; everything after creation belongs to
// the lifecycle tasks.
type Handler struct {
	cfg    *config.Config
	store  store.Store
	broker broker.Broker
	events *notifier.Events
	schema *jsonschema.Schema
}

func NewHandler(cfg *config.Config, st store.Store, brk broker.Broker, events *notifier.Events) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  st,
		broker: brk,
		events: events,
		schema: compileIntentSchema(),
	}
}

func (h *Handler) Type() bus.EventType { return bus.EvtOpenPositionIntent }

func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	if err := validatePayload(h.schema, payload); err != nil {
		h.events.EmitError("INTENT_REJECTED", "", err)
		return err
	}
	var intent bus.OpenPositionIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return fmt.Errorf("decode intent: %w", err)
	}
	if err := h.checkIntent(intent); err != nil {
		h.events.EmitError("INTENT_REJECTED", intent.Symbol, err)
		return err
	}

	// The detector already checked capacity, but other intents may have
	// landed between detection and execution.
	active, err := h.store.Positions().CountActive(ctx)
	if err != nil {
		return err
	}
	if active >= h.cfg.Strategy.MaxPositions {
		h.events.Emit(notifier.Event{
			Kind:    "SIGNAL_DROPPED",
			Symbol:  intent.Symbol,
			Details: map[string]string{"reason": "at position capacity"},
		})
		return nil
	}

	result, err := h.broker.PlaceBracket(ctx, broker.BracketRequest{
		Symbol:     intent.Symbol,
		Direction:  intent.Direction,
		Shares:     intent.Shares,
		EntryPrice: intent.EntryPrice,
		StopPrice:  intent.StopLoss,
	})
	if err != nil {
		h.events.EmitError("ORDER_FAILED", intent.Symbol, err)
		return fmt.Errorf("place bracket for %s: %w", intent.Symbol, err)
	}

	position := &model.Position{
		ID:             result.EntryOrderID,
		StopOrderID:    result.StopOrderID,
		OpeningRangeID: intent.OpeningRangeID,
		Symbol:         intent.Symbol,
		SessionDate:    intent.SessionDate,
		Direction:      intent.Direction,
		Shares:         intent.Shares,
		EntryPrice:     intent.EntryPrice,
		StopLossPrice:  intent.StopLoss,
		TakeProfit:     intent.TakeProfit,
		RangeSize:      intent.RangeSize,
		Status:         model.StatusPending,
		CreatedAt:      time.Now(),
	}
	if err := h.store.Positions().Create(ctx, position); err != nil {
		// The bracket is live but untracked; this needs a human.
		h.events.EmitError("POSITION_UNTRACKED", intent.Symbol,
			fmt.Errorf("bracket placed (entry order %d) but position not stored: %w", result.EntryOrderID, err))
		return err
	}

	logger.Infof("Execution: %s %s bracket placed, entry order %d, stop order %d, %d shares",
		intent.Symbol, intent.Direction, result.EntryOrderID, result.StopOrderID, intent.Shares)
	h.events.Emit(notifier.Event{
		Kind:   "POSITION_PENDING",
		Symbol: intent.Symbol,
		Details: map[string]string{
			"direction": string(intent.Direction),
			"shares":    fmt.Sprintf("%d", intent.Shares),
			"entry":     fmt.Sprintf("%.2f", intent.EntryPrice),
			"stop":      fmt.Sprintf("%.2f", intent.StopLoss),
			"target":    fmt.Sprintf("%.2f", intent.TakeProfit),
			"reason":    intent.Reason,
		},
	})
	return nil
}

// checkIntent enforces the semantic constraints the schema cannot express.
func (h *Handler) checkIntent(intent bus.OpenPositionIntent) error {
	if !intent.Direction.Valid() {
		return &domain.ValidationError{Field: "direction", Reason: string(intent.Direction)}
	}
	if intent.Direction == model.DirectionLong {
		if intent.StopLoss >= intent.EntryPrice {
			return &domain.ValidationError{Field: "stop_loss", Reason: "long stop must be below entry"}
		}
		if intent.TakeProfit <= intent.EntryPrice {
			return &domain.ValidationError{Field: "take_profit", Reason: "long target must be above entry"}
		}
	} else {
		if intent.StopLoss <= intent.EntryPrice {
			return &domain.ValidationError{Field: "stop_loss", Reason: "short stop must be above entry"}
		}
		if intent.TakeProfit >= intent.EntryPrice {
			return &domain.ValidationError{Field: "take_profit", Reason: "short target must be below entry"}
		}
	}
	return nil
}
