// Package draft implements turn-based snake-order picking with a timed
// random auto-pick fallback. Reducers are pure; the Machine adapter owns
// the mutable copy.
package draft

import (
	"math/rand"
	"slices"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

type Phase string

const (
	PhasePicking Phase = "picking"
	PhaseDone    Phase = "done"
)

type Team struct {
	ID        string   `json:"id"`
	CaptainID string   `json:"captain_id"`
	Members   []string `json:"members"`
}

type Rules struct {
	RosterSize    int `json:"roster_size"`
	PickWindowSec int `json:"pick_window_sec"`
}

type State struct {
	Phase     Phase    `json:"phase"`
	Teams     []Team   `json:"teams"`
	PickOrder []string `json:"pick_order"`
	PickIndex int      `json:"pick_index"`
	Available []string `json:"available"`
	Rules     Rules    `json:"rules"`
}

// BuildPickOrder precomputes the boustrophedon sequence: round r contributes
// team ids in ascending creation order when r is even, descending when odd.
func BuildPickOrder(teamIDs []string, rounds int) []string {
	order := make([]string, 0, rounds*len(teamIDs))
	for r := 0; r < rounds; r++ {
		if r%2 == 0 {
			order = append(order, teamIDs...)
		} else {
			for i := len(teamIDs) - 1; i >= 0; i-- {
				order = append(order, teamIDs[i])
			}
		}
	}
	return order
}

// NewState seeds the order for rosterSize-1 rounds; captains already occupy
// slot zero of each roster.
func NewState(teams []Team, players []string, rules Rules) State {
	ids := make([]string, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	s := State{
		Phase:     PhasePicking,
		Teams:     append([]Team(nil), teams...),
		PickOrder: BuildPickOrder(ids, rules.RosterSize-1),
		Available: append([]string(nil), players...),
		Rules:     rules,
	}
	if len(s.Available) == 0 || len(s.PickOrder) == 0 {
		s.Phase = PhaseDone
	}
	return s
}

func clone(s State) State {
	ns := s
	ns.Teams = make([]Team, len(s.Teams))
	for i, t := range s.Teams {
		t.Members = append([]string(nil), t.Members...)
		ns.Teams[i] = t
	}
	ns.Available = append([]string(nil), s.Available...)
	return ns
}

func teamIndex(s State, id string) int {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return i
		}
	}
	return -1
}

// chooseRandom is a var so tests can pin the auto-pick choice.
var chooseRandom = func(n int) int { return rand.Intn(n) }

func Apply(s State, cmd engine.Command) ([]engine.Event, State, error) {
	switch cmd.Type {
	case engine.CmdMakePick:
		return makePick(s, cmd)
	case engine.CmdAutoPick:
		return AutoPick(s)
	default:
		return nil, s, engine.ErrUnsupportedCommand
	}
}

func makePick(s State, cmd engine.Command) ([]engine.Event, State, error) {
	if s.Phase != PhasePicking {
		return nil, s, engine.ErrInvalidPhase
	}
	if s.PickOrder[s.PickIndex] != cmd.TeamID {
		return nil, s, engine.ErrNotYourTurn
	}
	i := teamIndex(s, cmd.TeamID)
	if i < 0 {
		return nil, s, engine.ErrUnknownTeam
	}
	// An absent identity never matches, even against a team with no captain.
	if cmd.ActorID == "" || cmd.ActorID != s.Teams[i].CaptainID {
		return nil, s, engine.ErrNotCaptain
	}
	if !slices.Contains(s.Available, cmd.PlayerID) {
		return nil, s, engine.ErrPlayerUnavailable
	}
	return applyPick(s, i, cmd.PlayerID, false)
}

// AutoPick is the timeout fallback: a uniformly random available player goes
// to the team on the clock.
func AutoPick(s State) ([]engine.Event, State, error) {
	if s.Phase != PhasePicking {
		return nil, s, engine.ErrInvalidPhase
	}
	if len(s.Available) == 0 {
		return nil, s, engine.ErrPlayerUnavailable
	}
	teamID := s.PickOrder[s.PickIndex]
	i := teamIndex(s, teamID)
	if i < 0 {
		return nil, s, engine.ErrUnknownTeam
	}
	playerID := s.Available[chooseRandom(len(s.Available))]
	return applyPick(s, i, playerID, true)
}

func applyPick(s State, team int, playerID string, forced bool) ([]engine.Event, State, error) {
	ns := clone(s)
	ns.Teams[team].Members = append(ns.Teams[team].Members, playerID)
	ns.Available = slices.DeleteFunc(ns.Available, func(p string) bool { return p == playerID })
	ns.PickIndex++

	events := []engine.Event{
		{Type: engine.EvtPickMade, TeamID: ns.Teams[team].ID, PlayerID: playerID, Forced: forced},
	}
	if ns.PickIndex >= len(ns.PickOrder) || len(ns.Available) == 0 {
		ns.Phase = PhaseDone
		events = append(events, engine.Event{Type: engine.EvtDraftDone})
	} else {
		events = append(events, engine.Event{Type: engine.EvtNextPick, TeamID: ns.PickOrder[ns.PickIndex]})
	}
	return events, ns, nil
}
