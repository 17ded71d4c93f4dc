package watchdog

import (
	"context"
	"sync"
	"time"
)

// AlarmHandler receives punctual deliveries from TimerAlarms.
type AlarmHandler func(ctx context.Context, id string)

// TimerAlarms is an in-process alarm backend built on time.AfterFunc. It
// stands in for a platform exact-alarm facility and has the same contract:
// best effort, one shot per scheduled id, delivery may be late or lost when
// the process is suspended.
type TimerAlarms struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	handler AlarmHandler
}

// NewTimerAlarms constructs a TimerAlarms delivering through handler.
func NewTimerAlarms(handler AlarmHandler) *TimerAlarms {
	return &TimerAlarms{
		timers:  make(map[string]*time.Timer),
		handler: handler,
	}
}

// Schedule arms a one-shot timer for the id, replacing any previous one.
// Fire times in the past arm an immediate timer.
func (a *TimerAlarms) Schedule(id string, fireAt time.Time) {
	if a == nil {
		return
	}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.timers[id]; ok {
		timer.Stop()
	}
	a.timers[id] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		delete(a.timers, id)
		a.mu.Unlock()
		if a.handler != nil {
			a.handler(context.Background(), id)
		}
	})
}

// Cancel disarms the timer for the id, if any.
func (a *TimerAlarms) Cancel(id string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if timer, ok := a.timers[id]; ok {
		timer.Stop()
		delete(a.timers, id)
	}
}

// Close disarms every timer.
func (a *TimerAlarms) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, timer := range a.timers {
		timer.Stop()
		delete(a.timers, id)
	}
}
