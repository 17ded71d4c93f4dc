// Package watchdog compensates for unreliable alarm delivery. Exact alarms
// handed to the platform scheduler can be delayed or dropped under battery
// or doze policies, so a periodic sweep re-checks every tracked fire time
// and fires overdue entries itself.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Notifier receives reminder deliveries, from either a punctual alarm or a
// watchdog catch-up sweep.
type Notifier interface {
	Notify(ctx context.Context, reminderID string, fireAt time.Time)
}

// AlarmBackend is the platform alarm facility the watchdog babysits.
type AlarmBackend interface {
	Schedule(id string, fireAt time.Time)
	Cancel(id string)
}

// The sweep runs twice per lookback window so an entry coming due right
// after a sweep still has a full interval of margin before the stale
// cutoff; with interval == lookback, tick latency could silently drop it.
const (
	defaultInterval = 30 * time.Second
	defaultLookback = time.Minute
)

// Watchdog tracks pending fire times and periodically reconciles them
// against the clock. An entry the backend fails to deliver is fired by the
// sweep within one interval of its due time, at most once; entries older
// than the lookback are dropped as moot rather than delivered late.
type Watchdog struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	backend  AlarmBackend
	notifier Notifier
	interval time.Duration
	lookback time.Duration
	now      func() time.Time
	logger   *slog.Logger

	cron      *cron.Cron
	cronEntry cron.EntryID
	suspended bool
}

// Option adjusts watchdog construction.
type Option func(*Watchdog)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLookback overrides how far behind the clock a missed entry may be and
// still be fired by a sweep.
func WithLookback(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.lookback = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) {
		if now != nil {
			w.now = now
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New constructs a Watchdog over the given alarm backend and notifier.
func New(backend AlarmBackend, notifier Notifier, opts ...Option) *Watchdog {
	w := &Watchdog{
		entries:  make(map[string]time.Time),
		backend:  backend,
		notifier: notifier,
		interval: defaultInterval,
		lookback: defaultLookback,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Schedule tracks a fire time and forwards it to the alarm backend. Calling
// Schedule again for the same id replaces the previous fire time.
func (w *Watchdog) Schedule(id string, fireAt time.Time) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.entries[id] = fireAt
	w.mu.Unlock()
	if w.backend != nil {
		w.backend.Schedule(id, fireAt)
	}
}

// Cancel stops tracking an entry and cancels its backend alarm. Unknown ids
// are ignored.
func (w *Watchdog) Cancel(id string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	delete(w.entries, id)
	w.mu.Unlock()
	if w.backend != nil {
		w.backend.Cancel(id)
	}
}

// HandleAlarm is the backend's delivery callback. The entry is removed
// before notifying so a sweep racing the alarm cannot fire it a second time.
func (w *Watchdog) HandleAlarm(ctx context.Context, id string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	fireAt, ok := w.entries[id]
	if ok {
		delete(w.entries, id)
	}
	w.mu.Unlock()
	if !ok {
		return
	}
	w.notify(ctx, id, fireAt)
}

// Reconcile sweeps tracked entries once. Entries due within the lookback
// window are fired here and their backend alarm cancelled; entries overdue
// beyond the lookback are dropped without delivery.
func (w *Watchdog) Reconcile(ctx context.Context) {
	if w == nil {
		return
	}
	now := w.now()
	cutoff := now.Add(-w.lookback)

	type due struct {
		id     string
		fireAt time.Time
	}
	var fire []due
	dropped := 0

	w.mu.Lock()
	for id, fireAt := range w.entries {
		if fireAt.After(now) {
			continue
		}
		delete(w.entries, id)
		if fireAt.Before(cutoff) {
			dropped++
			continue
		}
		fire = append(fire, due{id: id, fireAt: fireAt})
	}
	w.mu.Unlock()

	sort.Slice(fire, func(i, j int) bool { return fire[i].fireAt.Before(fire[j].fireAt) })

	for _, entry := range fire {
		if w.backend != nil {
			w.backend.Cancel(entry.id)
		}
		w.logger.InfoContext(ctx, "watchdog fired missed reminder", "reminder_id", entry.id, "fire_at", entry.fireAt, "late_by", now.Sub(entry.fireAt).String())
		w.notify(ctx, entry.id, entry.fireAt)
	}
	if dropped > 0 {
		w.logger.WarnContext(ctx, "watchdog dropped stale reminders", "count", dropped, "lookback", w.lookback.String())
	}
}

// Start begins the periodic sweep.
func (w *Watchdog) Start(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("watchdog is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return fmt.Errorf("watchdog already started")
	}

	runner := cron.New()
	entry := runner.Schedule(cron.Every(w.interval), cron.FuncJob(func() {
		w.mu.Lock()
		suspended := w.suspended
		w.mu.Unlock()
		if suspended {
			return
		}
		w.Reconcile(ctx)
	}))
	runner.Start()

	w.cron = runner
	w.cronEntry = entry
	w.logger.InfoContext(ctx, "watchdog started", "interval", w.interval.String(), "lookback", w.lookback.String())
	return nil
}

// Stop halts the periodic sweep. Tracked entries are kept.
func (w *Watchdog) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	runner := w.cron
	w.cron = nil
	w.mu.Unlock()
	if runner != nil {
		<-runner.Stop().Done()
	}
}

// Suspend pauses sweeping without losing tracked entries, mirroring a host
// going to sleep.
func (w *Watchdog) Suspend() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.suspended = true
	w.mu.Unlock()
}

// Resume re-enables sweeping and reconciles immediately, so entries that
// came due while suspended fire now instead of waiting out an interval.
func (w *Watchdog) Resume(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.suspended = false
	w.mu.Unlock()
	w.Reconcile(ctx)
}

// Pending reports how many entries are currently tracked.
func (w *Watchdog) Pending() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Watchdog) notify(ctx context.Context, id string, fireAt time.Time) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(ctx, id, fireAt)
}
