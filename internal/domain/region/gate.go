// Package region decides whether a region's challenge window is open.
package region

import (
	"context"
	"time"

	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/pkg/clock"
)

// ScheduleSource reads the current region start configuration.
type ScheduleSource interface {
	RegionSchedule(ctx context.Context) (model.RegionSchedule, error)
}

// Status is the outcome of a gate check.
type Status struct {
	Open    bool
	OpensAt *time.Time // nil when the region has no configured start
}

// Check evaluates r against schedule at now. A missing schedule or a
// region without an entry is open with no opening instant.
func Check(r model.Region, schedule model.RegionSchedule, now time.Time) Status {
	at, ok := schedule.OpensAt(r)
	if !ok {
		return Status{Open: true}
	}
	at = at.UTC()
	return Status{Open: !now.Before(at), OpensAt: &at}
}

// Gate re-reads the schedule and the clock on every call; the open state
// flips at a fixed external instant so nothing is cached.
type Gate struct {
	source ScheduleSource
	clock  clock.Clock
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// NewGate builds a Gate over source.
func NewGate(source ScheduleSource, opts ...Option) *Gate {
	g := &Gate{source: source, clock: clock.System{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates r now.
func (g *Gate) Check(ctx context.Context, r model.Region) (Status, error) {
	schedule, err := g.source.RegionSchedule(ctx)
	if err != nil {
		return Status{}, err
	}
	return Check(r, schedule, g.clock.Now()), nil
}

// FormatUTC renders an instant for display, e.g. "2025-10-15 08:00:00 UTC".
func FormatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}
