package types

import "github.com/mintscrew-bar/project-nexus-sub000/internal/engine"

// ClientMessage is the JSON command envelope. The actor identity rides on
// the connection, not the message; it is verified before the socket opens.
type ClientMessage struct {
	Type     string `json:"type"`
	TeamID   string `json:"team_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Amount   int    `json:"amount,omitempty"`
	Role     string `json:"role,omitempty"`
}

type ServerMessage struct {
	Type        string         `json:"type"` // "StateSnapshot" | "Error"
	Version     int            `json:"version,omitempty"`
	Events      []engine.Event `json:"events,omitempty"`
	State       any            `json:"state,omitempty"`
	RemainingMS int64          `json:"remaining_ms,omitempty"`
	Error       string         `json:"error,omitempty"`
}
