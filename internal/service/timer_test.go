package service

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/invoicing-bfa-go/internal/infra/observability"
	"github.com/boddenberg/invoicing-bfa-go/internal/syncer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopOutbox struct{}

func (nopOutbox) Enqueue(context.Context, syncer.Batch) {}
func (nopOutbox) Flush(context.Context) error          { return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTimer() (*Timer, *Store, *fakeClock) {
	store := NewStore(nil, nopOutbox{}, observability.NewMetrics(), zap.NewNop())
	clock := &fakeClock{t: time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)}
	timer := NewTimer(store)
	timer.now = clock.now
	timer.newID = func() string { return "entry-1" }
	return timer, store, clock
}

func TestTimer_AccumulatesAcrossPauses(t *testing.T) {
	timer, store, clock := newTestTimer()
	ctx := context.Background()

	require.NoError(t, timer.Start(TimerDraft{ClientID: "c1", Project: "site", Description: "layout"}))
	clock.advance(10 * time.Minute)
	timer.Pause()
	clock.advance(time.Hour)
	assert.Equal(t, int64(600), timer.Status().Elapsed, "paused time is not counted")

	require.NoError(t, timer.Resume())
	clock.advance(5 * time.Minute)
	assert.Equal(t, "00:15:00", timer.Status().Display)

	entry := timer.Stop(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, int64(900), entry.Duration)
	assert.Equal(t, "2026-03-09", entry.Date)
	assert.Equal(t, 100.0, entry.Rate)
	assert.True(t, entry.Billable)
	assert.Equal(t, "c1", entry.ClientID)

	entries := store.State().TimeEntries
	require.Len(t, entries, 1)
	assert.Equal(t, "entry-1", entries[0].ID)
	assert.False(t, timer.Status().Started, "stop resets the timer")
}

func TestTimer_StopWithNothingElapsedDispatchesNothing(t *testing.T) {
	timer, store, _ := newTestTimer()

	require.NoError(t, timer.Start(TimerDraft{}))
	assert.Nil(t, timer.Stop(context.Background()))
	assert.Empty(t, store.State().TimeEntries)

	assert.Nil(t, timer.Stop(context.Background()), "stopping an idle timer is a no-op")
}

func TestTimer_NonBillableDraft(t *testing.T) {
	timer, _, clock := newTestTimer()
	billable := false

	require.NoError(t, timer.Start(TimerDraft{Billable: &billable, Rate: 80}))
	clock.advance(30 * time.Minute)
	entry := timer.Stop(context.Background())

	require.NotNil(t, entry)
	assert.False(t, entry.Billable)
	assert.Equal(t, 80.0, entry.Rate)
	assert.Zero(t, entry.BillableAmount())
}

func TestTimer_StartTwiceConflicts(t *testing.T) {
	timer, _, _ := newTestTimer()

	require.NoError(t, timer.Start(TimerDraft{}))
	assert.Error(t, timer.Start(TimerDraft{}))
}

func TestTimer_ResumeWithoutStart(t *testing.T) {
	timer, _, _ := newTestTimer()
	assert.Error(t, timer.Resume())
}
