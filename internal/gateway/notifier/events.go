package notifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/frankgibbs/algolearn-orb/internal/logger"
)

// Event is the structured payload emitted on every state transition and
// every error. Formatting and delivery are the notifier's concern; callers
// only provide kind, symbol and details.
type Event struct {
	Kind    string
	Symbol  string
	Details map[string]string
}

// Events fans structured events out to a TextNotifier. Delivery failures are
// logged, never propagated: a broken notifier must not fail a trading task.
type Events struct {
	sink TextNotifier
}

func NewEvents(sink TextNotifier) *Events {
	if sink == nil {
		sink = Nop{}
	}
	return &Events{sink: sink}
}

func (e *Events) Emit(evt Event) {
	text := renderEvent(evt)
	if err := e.sink.SendText(text); err != nil {
		logger.Warnf("notifier: failed to deliver %s event: %v", evt.Kind, err)
	}
}

func (e *Events) EmitError(kind, symbol string, err error) {
	e.Emit(Event{
		Kind:    kind,
		Symbol:  symbol,
		Details: map[string]string{"error": err.Error()},
	})
}

func renderEvent(evt Event) string {
	var b strings.Builder
	b.WriteString(evt.Kind)
	if evt.Symbol != "" {
		b.WriteString(": " + evt.Symbol)
	}
	keys := make([]string, 0, len(evt.Details))
	for k := range evt.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("\n%s: %s", k, evt.Details[k]))
	}
	return b.String()
}
