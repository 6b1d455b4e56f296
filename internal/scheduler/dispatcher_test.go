package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func TestAlignedInterval(t *testing.T) {
	trig := Aligned(30 * time.Minute)
	base := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

	t.Run("fires exactly on the boundary", func(t *testing.T) {
		last := base.Add(-time.Minute)
		assert.True(t, trig.Due(base, last))
	})

	t.Run("fires shortly after the boundary on a coarse tick", func(t *testing.T) {
		last := base.Add(-time.Minute)
		assert.True(t, trig.Due(base.Add(4*time.Second), last))
	})

	t.Run("does not refire within the same period", func(t *testing.T) {
		last := base.Add(2 * time.Second)
		assert.False(t, trig.Due(base.Add(10*time.Second), last))
		assert.False(t, trig.Due(base.Add(29*time.Minute), last))
	})

	t.Run("fires again at the next boundary", func(t *testing.T) {
		last := base.Add(2 * time.Second)
		assert.True(t, trig.Due(base.Add(30*time.Minute), last))
	})
}

func TestInterval(t *testing.T) {
	trig := Every(30 * time.Second)
	base := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)

	assert.False(t, trig.Due(base.Add(10*time.Second), base))
	assert.True(t, trig.Due(base.Add(30*time.Second), base))
	assert.True(t, trig.Due(base.Add(45*time.Second), base))
}

func TestClockTime(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	trig := At(15, 50, loc)

	start := time.Date(2024, 3, 11, 9, 0, 0, 0, loc)

	t.Run("not due before the clock time", func(t *testing.T) {
		assert.False(t, trig.Due(start.Add(time.Hour), start))
	})

	t.Run("due once the clock time passes", func(t *testing.T) {
		now := time.Date(2024, 3, 11, 15, 50, 3, 0, loc)
		assert.True(t, trig.Due(now, start))
	})

	t.Run("does not refire after firing", func(t *testing.T) {
		fired := time.Date(2024, 3, 11, 15, 50, 3, 0, loc)
		assert.False(t, trig.Due(fired.Add(time.Minute), fired))
	})

	t.Run("due again the next day", func(t *testing.T) {
		fired := time.Date(2024, 3, 11, 15, 50, 3, 0, loc)
		next := time.Date(2024, 3, 12, 15, 50, 1, 0, loc)
		assert.True(t, trig.Due(next, fired))
	})

	t.Run("missed day start skips today", func(t *testing.T) {
		lateStart := time.Date(2024, 3, 11, 16, 0, 0, 0, loc)
		assert.False(t, trig.Due(lateStart.Add(time.Minute), lateStart))
	})
}

func TestDispatcherRunsDueTasksInOrder(t *testing.T) {
	d := NewDispatcher(time.Second, nil)

	now := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	d.nowFn = func() time.Time { return now }

	var order []string
	var stamps []time.Time
	d.Register("first", Every(time.Minute), func(ctx context.Context, now time.Time) error {
		order = append(order, "first")
		stamps = append(stamps, now)
		return nil
	})
	d.Register("second", Every(time.Minute), func(ctx context.Context, now time.Time) error {
		order = append(order, "second")
		stamps = append(stamps, now)
		return nil
	})

	for _, e := range d.entries {
		e.last = now.Add(-2 * time.Minute)
	}
	d.runDue(context.Background())

	assert.Equal(t, []string{"first", "second"}, order)
	// Every task on the same tick sees the same timestamp.
	assert.Equal(t, []time.Time{now, now}, stamps)
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	d := NewDispatcher(time.Second, nil)

	now := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	d.nowFn = func() time.Time { return now }

	var ran bool
	d.Register("broken", Every(time.Minute), func(ctx context.Context, now time.Time) error {
		return errors.New("gateway down")
	})
	d.Register("panics", Every(time.Minute), func(ctx context.Context, now time.Time) error {
		panic("boom")
	})
	d.Register("healthy", Every(time.Minute), func(ctx context.Context, now time.Time) error {
		ran = true
		return nil
	})

	for _, e := range d.entries {
		e.last = now.Add(-2 * time.Minute)
	}
	d.runDue(context.Background())

	assert.True(t, ran, "a failing task must not block later tasks")
}
