package registry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/session"
)

type idleMachine struct{}

func (idleMachine) Start() ([]engine.Event, engine.Timer) { return nil, engine.Timer{} }
func (idleMachine) Apply(engine.Command) ([]engine.Event, engine.Timer, error) {
	return nil, engine.Timer{}, engine.ErrUnsupportedCommand
}
func (idleMachine) Timeout() ([]engine.Event, engine.Timer, error) {
	return nil, engine.Timer{}, engine.ErrInvalidPhase
}
func (idleMachine) Done() bool { return false }
func (idleMachine) View() any  { return nil }

func TestRegistry_Create_Get_SamePointer(t *testing.T) {
	r := New(context.Background(), time.Hour, nil, zap.NewNop())
	reply := make(chan *session.Session, 1)

	r.Inbox() <- Create{ID: "ROOM42", Machine: idleMachine{}, Reply: reply}
	s1 := <-reply

	r.Inbox() <- Get{ID: "ROOM42", Reply: reply}
	s2 := <-reply

	if s1 == nil || s2 == nil || s1 != s2 {
		t.Fatalf("expected same session pointer")
	}
}

func TestRegistry_Get_UnknownIsNil(t *testing.T) {
	r := New(context.Background(), time.Hour, nil, zap.NewNop())
	reply := make(chan *session.Session, 1)

	r.Inbox() <- Get{ID: "nope", Reply: reply}
	if s := <-reply; s != nil {
		t.Fatalf("want nil for unknown session, got %v", s)
	}
}

func TestRegistry_SweepEvictsExpired(t *testing.T) {
	r := New(context.Background(), 10*time.Millisecond, nil, zap.NewNop())
	reply := make(chan *session.Session, 1)

	r.Inbox() <- Create{ID: "SHORT", Machine: idleMachine{}, Reply: reply}
	<-reply

	time.Sleep(30 * time.Millisecond)
	r.Inbox() <- sweep{}

	r.Inbox() <- Get{ID: "SHORT", Reply: reply}
	if s := <-reply; s != nil {
		t.Fatalf("expected expired session to be evicted")
	}
}

func TestRegistry_RemoveShutsDownSession(t *testing.T) {
	r := New(context.Background(), time.Hour, nil, zap.NewNop())
	reply := make(chan *session.Session, 1)

	r.Inbox() <- Create{ID: "GONE", Machine: idleMachine{}, Reply: reply}
	sess := <-reply

	out := make(chan session.Snapshot, 2)
	sess.Inbox() <- session.Join{ClientID: "c1", Outbox: out}
	<-out // join snapshot

	r.Inbox() <- Remove{ID: "GONE"}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected outbox close, got snapshot")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("session not shut down on remove")
	}
}
