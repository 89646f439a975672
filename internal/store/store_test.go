package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

func TestRowsFromEvents_FiltersNonAllocationEvents(t *testing.T) {
	events := []engine.Event{
		{Type: engine.EvtBidPlaced, TeamID: "A", PlayerID: "p1", Amount: 300},
		{Type: engine.EvtNextPick, TeamID: "B"},
		{Type: engine.EvtTimerTick},
		{Type: engine.EvtNomineeSold, TeamID: "A", PlayerID: "p1", Amount: 300, Forced: false},
		{Type: engine.EvtRoleSelected, TeamID: "A", PlayerID: "p1", Role: engine.RoleMid, Forced: true},
		{Type: engine.EvtDraftDone},
	}

	rows := rowsFromEvents("sess-1", 7, events)

	assert.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, "sess-1", r.SessionID)
		assert.Equal(t, 7, r.Version)
	}
	assert.Equal(t, string(engine.EvtBidPlaced), rows[0].Type)
	assert.Equal(t, 300, rows[0].Amount)
	assert.True(t, rows[2].Forced)
	assert.Equal(t, string(engine.RoleMid), rows[2].Role)
}

func TestRowsFromEvents_EmptyEvents(t *testing.T) {
	assert.Empty(t, rowsFromEvents("sess-1", 1, nil))
	assert.Empty(t, rowsFromEvents("sess-1", 1, []engine.Event{{Type: engine.EvtTimerTick}}))
}

func TestPurgeLoop_RunsOnTickAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan struct{})
	go func() {
		purgeLoop(ctx, 20*time.Millisecond, func(context.Context) error {
			calls.Add(1)
			return nil
		}, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 },
		time.Second, 10*time.Millisecond, "purge never invoked by the ticker")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("purge loop did not stop on cancel")
	}
}
