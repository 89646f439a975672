// Package session runs one formation session as an actor: a single goroutine
// owns the format machine, its version counter, and the timer, so every
// mutation — participant command or deadline firing — is serialized through
// the inbox. That is the whole concurrency story: no state is touched from
// outside the loop.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

// retryDelay is how long a failed forced resolution waits before the timer
// tries again; the phase stays pending in between.
const retryDelay = 5 * time.Second

type Msg interface{ isSessionMsg() }

// FromClient carries a verified participant command. Reply, if non-nil, gets
// exactly one Result: the broadcast snapshot or a typed rejection.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

type Join struct {
	ClientID string
	Outbox   chan Snapshot
}

type Leave struct{ ClientID string }

type Shutdown struct{}

// GetState reflects internal state without data races; used by tests and the
// registry janitor.
type GetState struct{ Reply chan View }

type timerFired struct{ gen uint64 }

func (FromClient) isSessionMsg() {}
func (Join) isSessionMsg()       {}
func (Leave) isSessionMsg()      {}
func (Shutdown) isSessionMsg()   {}
func (GetState) isSessionMsg()   {}
func (timerFired) isSessionMsg() {}

type Result struct {
	Snapshot Snapshot
	Err      error
}

type Snapshot struct {
	Version     int            `json:"version"`
	Events      []engine.Event `json:"events,omitempty"`
	State       any            `json:"state,omitempty"`
	RemainingMS int64          `json:"remaining_ms"`
}

type View struct {
	Version    int
	NumClients int
	Deadline   time.Time
	Done       bool
	State      any
}

// Archive receives accepted transitions for durable audit and snapshot
// storage. Failures are logged, never propagated back to the participant.
type Archive interface {
	RecordEvents(ctx context.Context, sessionID string, version int, events []engine.Event) error
	SaveSnapshot(ctx context.Context, sessionID string, version int, deadline time.Time, state any) error
}

type Session struct {
	id      string
	inbox   chan Msg
	machine engine.Machine
	version int
	clients map[string]chan Snapshot

	// timerGen is the reentrancy guard: every arm/extend/stop bumps it, and a
	// firing whose generation no longer matches is dropped. That makes a race
	// between a qualifying action and an in-flight firing safe.
	timerGen uint64
	deadline time.Time

	archive Archive
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, id string, m engine.Machine, archive Archive, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:      id,
		inbox:   make(chan Msg, 64),
		machine: m,
		clients: make(map[string]chan Snapshot),
		archive: archive,
		log:     log.With(zap.String("session_id", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) ID() string { return s.id }

func (s *Session) loop() {
	// Arm the opening window before accepting anything.
	events, timer := s.machine.Start()
	s.applyTimer(timer)
	s.persist(events)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case <-ticker.C:
			s.broadcastTick()

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ClientID] = msg.Outbox
				// Non-blocking like broadcast: a full outbox on join means
				// the client is already unusable.
				select {
				case msg.Outbox <- s.snapshot(nil):
				default:
					close(msg.Outbox)
					delete(s.clients, msg.ClientID)
				}

			case Leave:
				delete(s.clients, msg.ClientID)

			case FromClient:
				snap, err := s.handleCommand(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- Result{Snapshot: snap, Err: err}
				}

			case timerFired:
				s.handleTimeout(msg.gen)

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					Deadline:   s.deadline,
					Done:       s.machine.Done(),
					State:      s.machine.View(),
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleCommand(cmd engine.Command) (Snapshot, error) {
	events, timer, err := s.machine.Apply(cmd)
	if err != nil {
		return Snapshot{}, err
	}
	return s.commit(events, timer), nil
}

func (s *Session) handleTimeout(gen uint64) {
	if gen != s.timerGen {
		// Superseded by a later arm/extend; the resolution already happened
		// or no longer applies.
		return
	}
	if s.machine.Done() {
		return
	}
	events, timer, err := s.machine.Timeout()
	if err != nil {
		if errors.Is(err, engine.ErrInvalidPhase) {
			s.log.Warn("deadline fired outside a resolvable phase", zap.Error(err))
			return
		}
		// Forced resolution failed (downstream call, no eligible target).
		// Leave the phase pending and retry shortly.
		s.log.Error("forced resolution failed, phase stays pending", zap.Error(err))
		s.applyTimer(engine.ArmTimer(retryDelay))
		return
	}
	s.commit(events, timer)
}

// commit is the single mutation path: bump version, move the deadline,
// persist, broadcast.
func (s *Session) commit(events []engine.Event, timer engine.Timer) Snapshot {
	s.version++
	s.applyTimer(timer)
	s.persist(events)
	snap := s.snapshot(events)
	s.broadcast(snap)
	return snap
}

func (s *Session) applyTimer(t engine.Timer) {
	switch t.Op {
	case engine.TimerNone:
		return
	case engine.TimerStop:
		s.timerGen++
		s.deadline = time.Time{}
	case engine.TimerArm:
		s.timerGen++
		s.deadline = time.Now().Add(t.Dur)
		s.schedule(t.Dur)
	case engine.TimerExtend:
		// Soft-close: never shorten the window, never grant more than Dur.
		if nd := time.Now().Add(t.Dur); nd.After(s.deadline) {
			s.deadline = nd
		}
		s.timerGen++
		s.schedule(time.Until(s.deadline))
	}
}

func (s *Session) schedule(d time.Duration) {
	gen := s.timerGen
	time.AfterFunc(d, func() {
		select {
		case s.inbox <- timerFired{gen: gen}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) persist(events []engine.Event) {
	if s.archive == nil {
		return
	}
	if len(events) > 0 {
		if err := s.archive.RecordEvents(s.ctx, s.id, s.version, events); err != nil {
			s.log.Error("audit append failed", zap.Error(err))
		}
	}
	if err := s.archive.SaveSnapshot(s.ctx, s.id, s.version, s.deadline, s.machine.View()); err != nil {
		s.log.Error("snapshot save failed", zap.Error(err))
	}
}

func (s *Session) snapshot(events []engine.Event) Snapshot {
	return Snapshot{
		Version:     s.version,
		Events:      events,
		State:       s.machine.View(),
		RemainingMS: s.remainingMS(),
	}
}

func (s *Session) remainingMS() int64 {
	if s.deadline.IsZero() {
		return 0
	}
	ms := time.Until(s.deadline).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func (s *Session) broadcastTick() {
	if s.deadline.IsZero() || s.machine.Done() || len(s.clients) == 0 {
		return
	}
	s.broadcast(Snapshot{
		Version:     s.version,
		Events:      []engine.Event{{Type: engine.EvtTimerTick}},
		RemainingMS: s.remainingMS(),
	})
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func (s *Session) shutdown() {
	s.timerGen++ // invalidate any in-flight firing
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}
