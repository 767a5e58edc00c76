package service

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/domain"
	"github.com/boddenberg/invoicing-bfa-go/internal/state"

	"github.com/google/uuid"
)

// DefaultHourlyRate applies when a timer is started without a rate.
const DefaultHourlyRate = 100

// TimerDraft describes the work being tracked. A nil Billable means true.
type TimerDraft struct {
	ClientID    string  `json:"clientId"`
	Project     string  `json:"project"`
	Description string  `json:"description"`
	Billable    *bool   `json:"billable"`
	Rate        float64 `json:"rate"`
}

// TimerStatus is the tracker's current view.
type TimerStatus struct {
	Running bool       `json:"running"`
	Started bool       `json:"started"`
	Elapsed int64      `json:"elapsed"`
	Display string     `json:"display"`
	Draft   TimerDraft `json:"draft"`
}

// Timer tracks one block of work and records it as a time entry on stop.
// Nothing is persisted until Stop.
type Timer struct {
	store *Store
	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	started bool
	running bool
	since   time.Time
	accrued time.Duration
	draft   TimerDraft
}

// NewTimer creates a timer dispatching into store.
func NewTimer(store *Store) *Timer {
	return &Timer{store: store, now: time.Now, newID: uuid.NewString}
}

// Start begins tracking draft.
func (t *Timer) Start(draft TimerDraft) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return &domain.ErrConflict{Message: "timer already started"}
	}
	if draft.Rate < 0 {
		return &domain.ErrValidation{Field: "rate", Message: "rate must not be negative"}
	}
	if draft.Rate == 0 {
		draft.Rate = DefaultHourlyRate
	}
	if draft.Billable == nil {
		billable := true
		draft.Billable = &billable
	}

	t.draft = draft
	t.started = true
	t.running = true
	t.since = t.now()
	t.accrued = 0
	return nil
}

// Pause stops the clock, keeping the elapsed time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.accrued += t.now().Sub(t.since)
	t.running = false
}

// Resume restarts a paused clock.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return &domain.ErrValidation{Field: "timer", Message: "timer not started"}
	}
	if !t.running {
		t.running = true
		t.since = t.now()
	}
	return nil
}

func (t *Timer) elapsedLocked() int64 {
	d := t.accrued
	if t.running {
		d += t.now().Sub(t.since)
	}
	return int64(d / time.Second)
}

// Status reports the elapsed whole seconds.
func (t *Timer) Status() TimerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := t.elapsedLocked()
	return TimerStatus{
		Running: t.running,
		Started: t.started,
		Elapsed: elapsed,
		Display: domain.FormatDuration(elapsed),
		Draft:   t.draft,
	}
}

// Stop resets the timer and, when any time elapsed, records it through
// ADD_TIME_ENTRY. It returns the new entry, or nil when nothing was recorded.
func (t *Timer) Stop(ctx context.Context) *domain.TimeEntry {
	t.mu.Lock()
	elapsed := t.elapsedLocked()
	draft := t.draft
	started := t.started
	t.started, t.running, t.accrued, t.draft = false, false, 0, TimerDraft{}
	t.mu.Unlock()

	if !started || elapsed <= 0 {
		return nil
	}

	billable := draft.Billable == nil || *draft.Billable
	entry := domain.TimeEntry{
		ID:          t.newID(),
		ClientID:    draft.ClientID,
		Project:     draft.Project,
		Description: draft.Description,
		Billable:    billable,
		Rate:        draft.Rate,
		Duration:    elapsed,
		Date:        domain.Today(t.now()),
		CreatedAt:   t.now().UTC().Format(time.RFC3339),
	}
	t.store.Dispatch(ctx, state.NewAddTimeEntry(entry))
	return &entry
}
