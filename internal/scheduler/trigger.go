package scheduler

import "time"

// Trigger decides whether a registered task is due. last is the time of the
// previous fire (the dispatch start time before the first fire).
type Trigger interface {
	Due(now, last time.Time) bool
}

// ClockTime fires once per day at a fixed wall-clock time in loc.
type ClockTime struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

func At(hour, minute int, loc *time.Location) ClockTime {
	if loc == nil {
		loc = time.Local
	}
	return ClockTime{Hour: hour, Minute: minute, Loc: loc}
}

func (t ClockTime) Due(now, last time.Time) bool {
	local := now.In(t.Loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, t.Loc)
	return !local.Before(target) && last.In(t.Loc).Before(target)
}

// Interval fires once every fixed period, measured from the previous fire.
type Interval struct {
	Period time.Duration
}

func Every(period time.Duration) Interval { return Interval{Period: period} }

func (t Interval) Due(now, last time.Time) bool {
	if t.Period <= 0 {
		return false
	}
	return now.Sub(last) >= t.Period
}

// AlignedInterval fires only when wall-clock time modulo the period is zero,
// so a 30m period fires at :00 and :30. All symbols are then evaluated
// against the same completed bar boundary rather than at arbitrary offsets.
type AlignedInterval struct {
	Period time.Duration
}

func Aligned(period time.Duration) AlignedInterval { return AlignedInterval{Period: period} }

func (t AlignedInterval) Due(now, last time.Time) bool {
	if t.Period <= 0 {
		return false
	}
	boundary := now.Truncate(t.Period)
	return boundary.After(last)
}
