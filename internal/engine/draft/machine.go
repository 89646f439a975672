package draft

import (
	"time"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

// Machine adapts the pure reducer to the session actor.
type Machine struct {
	state State
}

func NewMachine(s State) *Machine { return &Machine{state: s} }

func (m *Machine) Start() ([]engine.Event, engine.Timer) {
	if m.state.Phase == PhaseDone {
		return nil, engine.StopTimer()
	}
	return []engine.Event{
		{Type: engine.EvtNextPick, TeamID: m.state.PickOrder[m.state.PickIndex]},
	}, engine.ArmTimer(m.pickWindow())
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
	events, ns, err := AutoPick(m.state)
	if err != nil {
		return nil, engine.Timer{}, err
	}
	m.state = ns
	return events, m.timerFor(events), nil
}

func (m *Machine) timerFor(events []engine.Event) engine.Timer {
	if engine.ContainsEvent(events, engine.EvtDraftDone) {
		return engine.StopTimer()
	}
	// Every resolved pick resets the full per-pick window.
	return engine.ArmTimer(m.pickWindow())
}

func (m *Machine) pickWindow() time.Duration {
	return time.Duration(m.state.Rules.PickWindowSec) * time.Second
}

func (m *Machine) Done() bool { return m.state.Phase == PhaseDone }

func (m *Machine) View() any { return clone(m.state) }
