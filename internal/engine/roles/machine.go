package roles

import (
	"fmt"
	"time"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

// BracketFunc starts the downstream bracket for the finished teams. It must
// be all-or-nothing: on error the role phase stays exactly where it was.
type BracketFunc func(teams []TeamRoles) error

// Machine adapts the pure reducer to the session actor.
type Machine struct {
	state   State
	bracket BracketFunc
}

func NewMachine(s State, bracket BracketFunc) *Machine {
	return &Machine{state: s, bracket: bracket}
}

func (m *Machine) Start() ([]engine.Event, engine.Timer) {
	if m.state.Phase == PhaseDone {
		return nil, engine.StopTimer()
	}
	return nil, engine.ArmTimer(m.selectWindow())
}

func (m *Machine) Apply(cmd engine.Command) ([]engine.Event, engine.Timer, error) {
	if cmd.Type == engine.CmdCompleteRoles {
		return m.finalize(m.state, nil)
	}
	events, ns, err := Apply(m.state, cmd)
	if err != nil {
		return nil, engine.Timer{}, err
	}
	m.state = ns
	return events, engine.Timer{Op: engine.TimerNone}, nil
}

// Timeout auto-assigns every open slot and then finalizes. If the downstream
// call fails, nothing is committed; the next firing retries from scratch.
func (m *Machine) Timeout() ([]engine.Event, engine.Timer, error) {
	events, ns, err := AutoAssign(m.state)
	if err != nil {
		return nil, engine.Timer{}, err
	}
	return m.finalize(ns, events)
}

func (m *Machine) finalize(ns State, events []engine.Event) ([]engine.Event, engine.Timer, error) {
	if ns.Phase != PhaseSelecting {
		return nil, engine.Timer{}, engine.ErrInvalidPhase
	}
	if !Complete(ns) {
		return nil, engine.Timer{}, engine.ErrInvalidPhase
	}
	if m.bracket != nil {
		if err := m.bracket(cloneTeams(ns.Teams)); err != nil {
			return nil, engine.Timer{}, fmt.Errorf("%w: %v", engine.ErrDownstreamTransition, err)
		}
	}
	ns.Phase = PhaseDone
	m.state = ns
	events = append(events, engine.Event{Type: engine.EvtRolesDone})
	return events, engine.StopTimer(), nil
}

func (m *Machine) selectWindow() time.Duration {
	return time.Duration(m.state.Rules.SelectWindowSec) * time.Second
}

func (m *Machine) Done() bool { return m.state.Phase == PhaseDone }

func (m *Machine) View() any { return clone(m.state) }
