// Package auction implements ascending-price bidding with soft-close
// extension, bounded unsold (yuchal) cycles, and forced settlement. The
// reducer functions are pure: they never mutate the input state.
package auction

import (
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
)

type Phase string

const (
	PhaseBidding Phase = "bidding"
	PhaseDone    Phase = "done"
)

type Team struct {
	ID              string   `json:"id"`
	CaptainID       string   `json:"captain_id"`
	InitialBudget   int      `json:"initial_budget"`
	RemainingBudget int      `json:"remaining_budget"`
	Members         []string `json:"members"`
	BonusGranted    bool     `json:"bonus_granted"`
}

func (t Team) Full(rosterSize int) bool {
	return len(t.Members) >= rosterSize
}

type Rules struct {
	Increment       int `json:"increment"`
	RosterSize      int `json:"roster_size"`
	BonusAmount     int `json:"bonus_amount"`
	MaxUnsoldCycles int `json:"max_unsold_cycles"`
	BidWindowSec    int `json:"bid_window_sec"`
	SoftCloseSec    int `json:"soft_close_sec"`
}

// State is the full auction cycle. Invariant: CurrentBid == 0 exactly when
// CurrentBidderID is empty.
type State struct {
	Phase           Phase    `json:"phase"`
	Teams           []Team   `json:"teams"`
	Queue           []string `json:"queue"`
	NomineeID       string   `json:"nominee_id,omitempty"`
	CurrentBid      int      `json:"current_bid"`
	CurrentBidderID string   `json:"current_bidder_id,omitempty"`
	UnsoldCycles    int      `json:"unsold_cycles"`
	Rules           Rules    `json:"rules"`
}

// NewState offers the first nominee immediately. MaxUnsoldCycles defaults to
// the team count so every team gets another turn before a forced assignment.
func NewState(teams []Team, nominees []string, rules Rules) State {
	if rules.MaxUnsoldCycles <= 0 {
		rules.MaxUnsoldCycles = len(teams)
	}
	if rules.Increment <= 0 {
		rules.Increment = 1
	}
	s := State{
		Phase: PhaseBidding,
		Teams: append([]Team(nil), teams...),
		Queue: append([]string(nil), nominees...),
		Rules: rules,
	}
	if len(s.Queue) > 0 {
		s.NomineeID = s.Queue[0]
		s.Queue = s.Queue[1:]
	} else {
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
	ns.Queue = append([]string(nil), s.Queue...)
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

// Apply handles a participant command against the current cycle.
func Apply(s State, cmd engine.Command) ([]engine.Event, State, error) {
	switch cmd.Type {
	case engine.CmdPlaceBid:
		return placeBid(s, cmd)
	case engine.CmdResolveNominee:
		return Resolve(s)
	default:
		return nil, s, engine.ErrUnsupportedCommand
	}
}

func placeBid(s State, cmd engine.Command) ([]engine.Event, State, error) {
	if s.Phase != PhaseBidding || s.NomineeID == "" {
		return nil, s, engine.ErrInvalidPhase
	}
	i := teamIndex(s, cmd.TeamID)
	if i < 0 {
		return nil, s, engine.ErrUnknownTeam
	}
	team := s.Teams[i]
	if team.Full(s.Rules.RosterSize) {
		return nil, s, engine.ErrTeamFull
	}
	if cmd.Amount%s.Rules.Increment != 0 || cmd.Amount < s.CurrentBid+s.Rules.Increment {
		return nil, s, engine.ErrBidTooLow
	}
	if cmd.Amount > team.RemainingBudget {
		return nil, s, engine.ErrInsufficientBudget
	}

	ns := clone(s)
	ns.CurrentBid = cmd.Amount
	ns.CurrentBidderID = cmd.TeamID
	ns.UnsoldCycles = 0

	events := []engine.Event{
		{Type: engine.EvtBidPlaced, TeamID: cmd.TeamID, PlayerID: s.NomineeID, Amount: cmd.Amount},
	}
	return events, ns, nil
}

// Resolve settles the current nominee: a sale when a bidder exists, an unsold
// cycle otherwise, escalating to a forced assignment once every team has had
// another turn. It is settlement, never another bid.
func Resolve(s State) ([]engine.Event, State, error) {
	if s.Phase != PhaseBidding || s.NomineeID == "" {
		return nil, s, engine.ErrInvalidPhase
	}

	ns := clone(s)
	var events []engine.Event

	if ns.CurrentBidderID != "" {
		i := teamIndex(ns, ns.CurrentBidderID)
		ns.Teams[i].RemainingBudget -= ns.CurrentBid
		ns.Teams[i].Members = append(ns.Teams[i].Members, ns.NomineeID)
		events = append(events, engine.Event{
			Type: engine.EvtNomineeSold, TeamID: ns.CurrentBidderID,
			PlayerID: ns.NomineeID, Amount: ns.CurrentBid,
		})
		ns.UnsoldCycles = 0
	} else {
		ns.UnsoldCycles++
		if ns.UnsoldCycles < ns.Rules.MaxUnsoldCycles {
			// Re-offer the same nominee with a fresh full-length window.
			events = append(events, engine.Event{Type: engine.EvtNomineeUnsold, PlayerID: ns.NomineeID})
			return events, ns, nil
		}
		i := forcedTarget(ns)
		if i < 0 {
			return nil, s, engine.ErrUnknownTeam
		}
		if ns.Teams[i].RemainingBudget == 0 && !ns.Teams[i].BonusGranted {
			ns.Teams[i].RemainingBudget += ns.Rules.BonusAmount
			ns.Teams[i].BonusGranted = true
		}
		ns.Teams[i].Members = append(ns.Teams[i].Members, ns.NomineeID)
		events = append(events, engine.Event{
			Type: engine.EvtNomineeSold, TeamID: ns.Teams[i].ID,
			PlayerID: ns.NomineeID, Forced: true,
		})
		ns.UnsoldCycles = 0
	}

	ns.NomineeID = ""
	ns.CurrentBid = 0
	ns.CurrentBidderID = ""

	if done := advance(&ns); done {
		events = append(events, engine.Event{Type: engine.EvtAuctionDone})
	}
	return events, ns, nil
}

// forcedTarget picks the incomplete team with the highest remaining budget,
// first in creation order on ties.
func forcedTarget(s State) int {
	best := -1
	for i := range s.Teams {
		if s.Teams[i].Full(s.Rules.RosterSize) {
			continue
		}
		if best < 0 || s.Teams[i].RemainingBudget > s.Teams[best].RemainingBudget {
			best = i
		}
	}
	return best
}

func advance(s *State) bool {
	if len(s.Queue) == 0 || allFull(*s) {
		s.Phase = PhaseDone
		return true
	}
	s.NomineeID = s.Queue[0]
	s.Queue = s.Queue[1:]
	return false
}

func allFull(s State) bool {
	for i := range s.Teams {
		if !s.Teams[i].Full(s.Rules.RosterSize) {
			return false
		}
	}
	return true
}
