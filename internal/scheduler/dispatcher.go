package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/gateway/notifier"
	"github.com/frankgibbs/algolearn-orb/internal/logger"
)

// Task is one scheduled unit of work. Tasks do not catch their own errors;
// everything propagates to the dispatcher boundary. The now argument is the
// tick timestamp, shared by every task that runs on the same tick, so a
// task can tell work done earlier in the tick from work done on a previous
// one.
type Task func(ctx context.Context, now time.Time) error

type entry struct {
	name    string
	trigger Trigger
	task    Task
	last    time.Time
}

// Dispatcher evaluates registered triggers on a coarse tick and runs due
// tasks one at a time, in registration order. It is the sole recovery point:
// a task error (or panic) is logged with context, pushed to the operator
// channel, and the loop proceeds with the next due task.
type Dispatcher struct {
	tick    time.Duration
	entries []*entry
	events  *notifier.Events
	nowFn   func() time.Time
}

func NewDispatcher(tick time.Duration, events *notifier.Events) *Dispatcher {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if events == nil {
		events = notifier.NewEvents(nil)
	}
	return &Dispatcher{tick: tick, events: events, nowFn: time.Now}
}

// Register adds a named task. Registration order is execution order for
// tasks that come due on the same tick; it is fixed before Run.
func (d *Dispatcher) Register(name string, trigger Trigger, task Task) {
	if name == "" || trigger == nil || task == nil {
		logger.Warnf("Dispatcher: ignoring invalid registration (name=%q)", name)
		return
	}
	d.entries = append(d.entries, &entry{name: name, trigger: trigger, task: task})
}

// Run blocks until ctx is done. Exactly one task executes at a time.
func (d *Dispatcher) Run(ctx context.Context) error {
	start := d.nowFn()
	for _, e := range d.entries {
		e.last = start
	}
	logger.Infof("Dispatcher: started tick=%s tasks=%d", d.tick, len(d.entries))

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Dispatcher: ctx done, exit")
			return ctx.Err()
		case <-ticker.C:
			d.runDue(ctx)
		}
	}
}

func (d *Dispatcher) runDue(ctx context.Context) {
	now := d.nowFn()
	for _, e := range d.entries {
		if ctx.Err() != nil {
			return
		}
		if !e.trigger.Due(now, e.last) {
			continue
		}
		e.last = now
		d.runTask(ctx, now, e)
	}
}

func (d *Dispatcher) runTask(ctx context.Context, now time.Time, e *entry) {
	started := d.nowFn()
	var err error
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Dispatcher: panic in task %s: %v", e.name, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			logger.Errorf("Dispatcher: task %s failed: %v", e.name, err)
			d.events.Emit(notifier.Event{
				Kind:    "TASK_ERROR",
				Details: map[string]string{"task": e.name, "error": err.Error()},
			})
		}
		if dur := time.Since(started); dur > 30*time.Second {
			logger.Warnf("Dispatcher: slow task %s took %s", e.name, dur.Truncate(time.Millisecond))
		}
	}()

	logger.Debugf("Dispatcher: running task %s", e.name)
	err = e.task(ctx, now)
}
