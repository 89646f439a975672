package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine/auction"
)

// fakeMachine is a scripted engine.Machine for exercising the actor loop.
type fakeMachine struct {
	startTimer engine.Timer
	applyTimer engine.Timer
	applyErr   error
	timeouts   atomic.Int32
	done       bool
}

func (f *fakeMachine) Start() ([]engine.Event, engine.Timer) { return nil, f.startTimer }

func (f *fakeMachine) Apply(cmd engine.Command) ([]engine.Event, engine.Timer, error) {
	if f.applyErr != nil {
		return nil, engine.Timer{}, f.applyErr
	}
	return []engine.Event{{Type: engine.EvtPickMade}}, f.applyTimer, nil
}

func (f *fakeMachine) Timeout() ([]engine.Event, engine.Timer, error) {
	f.timeouts.Add(1)
	return []engine.Event{{Type: engine.EvtPickMade, Forced: true}}, engine.StopTimer(), nil
}

func (f *fakeMachine) Done() bool { return f.done }
func (f *fakeMachine) View() any  { return nil }

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvResult(t *testing.T, ch <-chan Result, within time.Duration) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(within):
		t.Fatalf("timed out waiting for result")
		return Result{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return
			}
			if s.Version != 0 || len(s.Events) > 0 && s.Events[0].Type != engine.EvtTimerTick {
				t.Fatalf("expected no state snapshot within %v, but got: %+v", within, s)
			}
		case <-deadline:
			return
		}
	}
}

func TestSession_CommandBroadcastsAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMachine{}
	s := New(ctx, "s1", fm, nil, zap.NewNop())

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 {
		t.Fatalf("after join: want version=0, got %d", first.Version)
	}

	reply := make(chan Result, 1)
	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdMakePick}, Reply: reply}

	res := recvResult(t, reply, 100*time.Millisecond)
	if res.Err != nil {
		t.Fatalf("unexpected rejection: %v", res.Err)
	}
	if res.Snapshot.Version != 1 {
		t.Fatalf("want version=1, got %d", res.Snapshot.Version)
	}

	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 1 || !engine.ContainsEvent(next.Events, engine.EvtPickMade) {
		t.Fatalf("broadcast mismatch: %+v", next)
	}
}

func TestSession_RejectionIsSynchronousAndSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMachine{applyErr: engine.ErrNotYourTurn}
	s := New(ctx, "s1", fm, nil, zap.NewNop())

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	reply := make(chan Result, 1)
	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdMakePick}, Reply: reply}

	res := recvResult(t, reply, 100*time.Millisecond)
	if !errors.Is(res.Err, engine.ErrNotYourTurn) {
		t.Fatalf("want ErrNotYourTurn, got %v", res.Err)
	}
	recvNoSnapshot(t, out, 150*time.Millisecond)
}

func TestSession_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New(ctx, "s1", &fakeMachine{}, nil, zap.NewNop())

	// Buffer of one holds the join snapshot; the next broadcast cannot be
	// delivered and the client gets dropped.
	out := make(chan Snapshot, 1)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdMakePick}}

	reply := make(chan View, 1)
	s.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		if v.NumClients != 0 {
			t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for view")
	}
}

func TestSession_TimerFiresForcedResolution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMachine{startTimer: engine.ArmTimer(50 * time.Millisecond)}
	s := New(ctx, "s1", fm, nil, zap.NewNop())

	out := make(chan Snapshot, 8)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	snap := recvSnapshot(t, out, 500*time.Millisecond)
	if snap.Version != 1 {
		t.Fatalf("want version=1 after firing, got %d", snap.Version)
	}
	if !snap.Events[0].Forced {
		t.Fatalf("timeout resolution should be forced: %+v", snap.Events)
	}
	if fm.timeouts.Load() != 1 {
		t.Fatalf("want exactly one timeout, got %d", fm.timeouts.Load())
	}
}

func TestSession_TimerGen_DropsStaleFires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMachine{
		startTimer: engine.ArmTimer(80 * time.Millisecond),
		applyTimer: engine.ArmTimer(200 * time.Millisecond),
	}
	s := New(ctx, "s1", fm, nil, zap.NewNop())

	// Re-arm via an accepted command before the first window lapses; the
	// original firing must be discarded by the generation guard.
	time.Sleep(20 * time.Millisecond)
	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdMakePick}}

	time.Sleep(150 * time.Millisecond)
	if n := fm.timeouts.Load(); n != 0 {
		t.Fatalf("stale fire not dropped: %d timeouts", n)
	}

	time.Sleep(150 * time.Millisecond)
	if n := fm.timeouts.Load(); n != 1 {
		t.Fatalf("want exactly one timeout from the re-armed window, got %d", n)
	}
}

func TestSession_Shutdown_StopsTimer_NoFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fm := &fakeMachine{startTimer: engine.ArmTimer(60 * time.Millisecond)}
	s := New(ctx, "s1", fm, nil, zap.NewNop())

	s.Inbox() <- Shutdown{}

	time.Sleep(150 * time.Millisecond)
	if n := fm.timeouts.Load(); n != 0 {
		t.Fatalf("timer fired after shutdown: %d", n)
	}
}

func TestSession_AuctionSettlesNomineeExactlyOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := auction.NewState(
		[]auction.Team{
			{ID: "A", CaptainID: "capA", RemainingBudget: 2000, Members: []string{"capA"}},
			{ID: "B", CaptainID: "capB", RemainingBudget: 2000, Members: []string{"capB"}},
		},
		[]string{"p1", "p2"},
		auction.Rules{Increment: 100, RosterSize: 2, BidWindowSec: 1, SoftCloseSec: 1},
	)
	s := New(ctx, "s1", auction.NewMachine(state), nil, zap.NewNop())

	out := make(chan Snapshot, 32)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	reply := make(chan Result, 1)
	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdPlaceBid, TeamID: "B", Amount: 200}, Reply: reply}
	if res := recvResult(t, reply, 100*time.Millisecond); res.Err != nil {
		t.Fatalf("bid rejected: %v", res.Err)
	}

	// Explicit host resolution races the armed deadline; the nominee must
	// settle exactly once.
	s.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdResolveNominee}, Reply: reply}
	if res := recvResult(t, reply, 100*time.Millisecond); res.Err != nil {
		t.Fatalf("resolve rejected: %v", res.Err)
	}

	time.Sleep(1500 * time.Millisecond)

	view := make(chan View, 1)
	s.Inbox() <- GetState{Reply: view}
	v := <-view
	st := v.State.(auction.State)
	sold := 0
	for _, tm := range st.Teams {
		for _, m := range tm.Members {
			if m == "p1" {
				sold++
			}
		}
	}
	if sold != 1 {
		t.Fatalf("nominee p1 settled %d times, want exactly once", sold)
	}
	if st.Teams[1].RemainingBudget != 1800 {
		t.Fatalf("want budget 1800 after sale, got %d", st.Teams[1].RemainingBudget)
	}
}
