// Package engine defines the command/event model shared by the three
// formation formats (auction, snake draft, role assignment) and the error
// taxonomy returned to callers. Each format lives in its own subpackage as a
// pure reducer plus a Machine adapter consumed by the session actor.
package engine

import (
	"errors"
	"time"
)

var ErrInvalidPhase = errors.New("action not legal in current phase")
var ErrBidTooLow = errors.New("bid below minimum increment")
var ErrInsufficientBudget = errors.New("bid exceeds remaining budget")
var ErrNotYourTurn = errors.New("not your turn")
var ErrNotCaptain = errors.New("caller is not the team captain")
var ErrPlayerUnavailable = errors.New("player already allocated")
var ErrUnknownTeam = errors.New("unknown team")
var ErrTeamFull = errors.New("team roster already full")
var ErrUnknownMember = errors.New("unknown team member")
var ErrSessionNotFound = errors.New("session not found")
var ErrDownstreamTransition = errors.New("downstream transition failed")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdPlaceBid       CommandType = "PlaceBid"
	CmdResolveNominee CommandType = "ResolveNominee"
	CmdMakePick       CommandType = "MakePick"
	CmdAutoPick       CommandType = "AutoPick"
	CmdSelectRole     CommandType = "SelectRole"
	CmdCompleteRoles  CommandType = "CompleteRoles"
)

// Command is a verified participant action. ActorID is the caller identity,
// already authenticated by the surrounding system.
type Command struct {
	Type     CommandType
	ActorID  string
	TeamID   string
	PlayerID string
	Amount   int
	Role     Role
}

type EventType string

const (
	EvtBidPlaced     EventType = "bid-placed"
	EvtNomineeSold   EventType = "nominee-sold"
	EvtNomineeUnsold EventType = "nominee-unsold"
	EvtAuctionDone   EventType = "auction-complete"
	EvtPickMade      EventType = "pick-made"
	EvtNextPick      EventType = "next-pick"
	EvtDraftDone     EventType = "draft-complete"
	EvtRoleSelected  EventType = "role-selected"
	EvtRolesDone     EventType = "role-selection-complete"
	EvtTimerTick     EventType = "timer-tick"
)

// Event is one accepted state transition, fanned out to session participants
// and appended to the audit log. Forced marks timer-driven resolutions.
type Event struct {
	Type     EventType `json:"type"`
	TeamID   string    `json:"team_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	Amount   int       `json:"amount,omitempty"`
	Role     Role      `json:"role,omitempty"`
	Forced   bool      `json:"forced,omitempty"`
}

type TimerOp int

const (
	TimerNone TimerOp = iota
	TimerArm
	TimerExtend // deadline = max(deadline, now+Dur); soft-close
	TimerStop
)

// Timer is the deadline directive a machine hands back alongside its events.
type Timer struct {
	Op  TimerOp
	Dur time.Duration
}

func ArmTimer(d time.Duration) Timer    { return Timer{Op: TimerArm, Dur: d} }
func ExtendTimer(d time.Duration) Timer { return Timer{Op: TimerExtend, Dur: d} }
func StopTimer() Timer                  { return Timer{Op: TimerStop} }

// Machine is one format's state, advanced only from the owning session
// goroutine. Apply handles a participant command; Timeout is the forced
// resolution path invoked when the deadline fires. Both either fully apply
// or leave the state untouched.
type Machine interface {
	Start() ([]Event, Timer)
	Apply(cmd Command) ([]Event, Timer, error)
	Timeout() ([]Event, Timer, error)
	Done() bool
	View() any
}

// Role is one of the five mutually-exclusive lane roles assigned per team.
type Role string

const (
	RoleTop     Role = "top"
	RoleJungle  Role = "jungle"
	RoleMid     Role = "mid"
	RoleBot     Role = "bot"
	RoleSupport Role = "support"
)

// AllRoles is the fixed role set, in display order.
var AllRoles = []Role{RoleTop, RoleJungle, RoleMid, RoleBot, RoleSupport}

func ValidRole(r Role) bool {
	for _, v := range AllRoles {
		if v == r {
			return true
		}
	}
	return false
}

func ContainsEvent(events []Event, t EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}
