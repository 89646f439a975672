package auction

import (
	"time"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

// Machine adapts the pure reducer to the session actor. Access is serialized
// by the owning session goroutine.
type Machine struct {
	state State
}

func NewMachine(s State) *Machine { return &Machine{state: s} }

func (m *Machine) Start() ([]engine.Event, engine.Timer) {
	if m.state.Phase == PhaseDone {
		return nil, engine.StopTimer()
	}
	return nil, engine.ArmTimer(m.bidWindow())
}

func (m *Machine) Apply(cmd engine.Command) ([]engine.Event, engine.Timer, error) {
	events, ns, err := Apply(m.state, cmd)
	if err != nil {
		return nil, engine.Timer{}, err
	}
	m.state = ns
	return events, m.timerFor(events), nil
}

func (m *Machine) Timeout() ([]engine.Event, engine.Timer, error) {
	events, ns, err := Resolve(m.state)
	if err != nil {
		return nil, engine.Timer{}, err
	}
	m.state = ns
	return events, m.timerFor(events), nil
}

// timerFor derives the deadline directive from what just happened: a bid gets
// the short soft-close extension, a settled or re-offered nominee a full
// window, completion stops the clock.
func (m *Machine) timerFor(events []engine.Event) engine.Timer {
	if engine.ContainsEvent(events, engine.EvtAuctionDone) {
		return engine.StopTimer()
	}
	if engine.ContainsEvent(events, engine.EvtBidPlaced) {
		return engine.ExtendTimer(time.Duration(m.state.Rules.SoftCloseSec) * time.Second)
	}
	return engine.ArmTimer(m.bidWindow())
}

func (m *Machine) bidWindow() time.Duration {
	return time.Duration(m.state.Rules.BidWindowSec) * time.Second
}

func (m *Machine) Done() bool { return m.state.Phase == PhaseDone }

func (m *Machine) View() any { return clone(m.state) }
