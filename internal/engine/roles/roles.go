// Package roles implements per-team lane-role assignment: five mutually
// exclusive roles, last-writer-displaces semantics, and a three-pass greedy
// auto-assign on timeout. Completion is gated on a downstream bracket call
// that must succeed before the phase may advance.
package roles

import (
	"math/rand"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

type Phase string

const (
	PhaseSelecting Phase = "selecting"
	PhaseDone      Phase = "done"
)

// Member tracks one roster slot. Role stays empty until assigned; Primary and
// Secondary are the player's preferred lanes used by auto-assign.
type Member struct {
	ID        string      `json:"id"`
	Role      engine.Role `json:"role,omitempty"`
	Primary   engine.Role `json:"primary,omitempty"`
	Secondary engine.Role `json:"secondary,omitempty"`
}

type TeamRoles struct {
	TeamID  string   `json:"team_id"`
	Members []Member `json:"members"`
}

type Rules struct {
	SelectWindowSec int `json:"select_window_sec"`
}

type State struct {
	Phase Phase       `json:"phase"`
	Teams []TeamRoles `json:"teams"`
	Rules Rules       `json:"rules"`
}

func NewState(teams []TeamRoles, rules Rules) State {
	return State{Phase: PhaseSelecting, Teams: cloneTeams(teams), Rules: rules}
}

func cloneTeams(teams []TeamRoles) []TeamRoles {
	out := make([]TeamRoles, len(teams))
	for i, t := range teams {
		t.Members = append([]Member(nil), t.Members...)
		out[i] = t
	}
	return out
}

func clone(s State) State {
	ns := s
	ns.Teams = cloneTeams(s.Teams)
	return ns
}

func teamIndex(s State, id string) int {
	for i := range s.Teams {
		if s.Teams[i].TeamID == id {
			return i
		}
	}
	return -1
}

// shuffleRoles is a var so tests can pin the third auto-assign pass.
var shuffleRoles = func(roles []engine.Role) {
	rand.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
}

// Apply handles CmdSelectRole. Within one team: selecting a role held by a
// teammate displaces them, re-selecting your own role toggles it off,
// anything else sets it.
func Apply(s State, cmd engine.Command) ([]engine.Event, State, error) {
	if cmd.Type != engine.CmdSelectRole {
		return nil, s, engine.ErrUnsupportedCommand
	}
	if s.Phase != PhaseSelecting {
		return nil, s, engine.ErrInvalidPhase
	}
	if !engine.ValidRole(cmd.Role) {
		return nil, s, engine.ErrUnsupportedCommand
	}
	ti := teamIndex(s, cmd.TeamID)
	if ti < 0 {
		return nil, s, engine.ErrUnknownTeam
	}

	ns := clone(s)
	team := &ns.Teams[ti]
	mi := -1
	for i := range team.Members {
		if team.Members[i].ID == cmd.PlayerID {
			mi = i
		}
	}
	if mi < 0 {
		return nil, ns, engine.ErrUnknownMember
	}

	if team.Members[mi].Role == cmd.Role {
		team.Members[mi].Role = ""
	} else {
		for i := range team.Members {
			if team.Members[i].Role == cmd.Role {
				team.Members[i].Role = ""
			}
		}
		team.Members[mi].Role = cmd.Role
	}

	events := []engine.Event{
		{Type: engine.EvtRoleSelected, TeamID: cmd.TeamID, PlayerID: cmd.PlayerID, Role: team.Members[mi].Role},
	}
	return events, ns, nil
}

// AutoAssign fills every open slot: preferred primary role first, then
// secondary, then the remaining open roles shuffled over whoever is left.
func AutoAssign(s State) ([]engine.Event, State, error) {
	if s.Phase != PhaseSelecting {
		return nil, s, engine.ErrInvalidPhase
	}
	ns := clone(s)
	var events []engine.Event

	for ti := range ns.Teams {
		team := &ns.Teams[ti]

		assign := func(mi int, r engine.Role) {
			team.Members[mi].Role = r
			events = append(events, engine.Event{
				Type: engine.EvtRoleSelected, TeamID: team.TeamID,
				PlayerID: team.Members[mi].ID, Role: r, Forced: true,
			})
		}
		taken := func(r engine.Role) bool {
			for i := range team.Members {
				if team.Members[i].Role == r {
					return true
				}
			}
			return false
		}

		for mi := range team.Members {
			if team.Members[mi].Role == "" && team.Members[mi].Primary != "" && !taken(team.Members[mi].Primary) {
				assign(mi, team.Members[mi].Primary)
			}
		}
		for mi := range team.Members {
			if team.Members[mi].Role == "" && team.Members[mi].Secondary != "" && !taken(team.Members[mi].Secondary) {
				assign(mi, team.Members[mi].Secondary)
			}
		}

		var open []engine.Role
		for _, r := range engine.AllRoles {
			if !taken(r) {
				open = append(open, r)
			}
		}
		shuffleRoles(open)
		for mi := range team.Members {
			if team.Members[mi].Role == "" && len(open) > 0 {
				assign(mi, open[0])
				open = open[1:]
			}
		}
	}
	return events, ns, nil
}

// Complete reports whether every member on every team holds a role.
func Complete(s State) bool {
	for _, t := range s.Teams {
		for _, m := range t.Members {
			if m.Role == "" {
				return false
			}
		}
	}
	return true
}
