package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/config"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine/auction"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine/draft"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine/roles"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/registry"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/session"
)

var errUnknownFormat = errors.New("unknown format")

// API wires the host-facing surface to the session registry. Bracket is the
// downstream collaborator called when role selection completes; nil disables
// the gate.
type API struct {
	Reg     *registry.Registry
	Cfg     config.Config
	Bracket roles.BracketFunc
	Log     *zap.Logger
}

type teamSpec struct {
	ID        string       `json:"id"`
	CaptainID string       `json:"captain_id"`
	Members   []memberSpec `json:"members,omitempty"`
}

type memberSpec struct {
	ID        string `json:"id"`
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

type createSessionRequest struct {
	Format  string     `json:"format"` // "auction" | "draft" | "roles"
	Teams   []teamSpec `json:"teams"`
	Players []string   `json:"players,omitempty"`
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.Teams) == 0 {
		http.Error(w, "at least one team required", http.StatusBadRequest)
		return
	}

	machine, err := a.buildMachine(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := uuid.NewString()
	reply := make(chan *session.Session, 1)
	a.Reg.Inbox() <- registry.Create{ID: id, Machine: machine, Reply: reply}
	if <-reply == nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	a.Log.Info("session created", zap.String("session_id", id), zap.String("format", req.Format))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		SessionID string `json:"session_id"`
	}{SessionID: id})
}

func (a *API) buildMachine(req createSessionRequest) (engine.Machine, error) {
	switch req.Format {
	case "auction":
		teams := make([]auction.Team, len(req.Teams))
		for i, t := range req.Teams {
			teams[i] = auction.Team{
				ID:              t.ID,
				CaptainID:       t.CaptainID,
				InitialBudget:   a.Cfg.InitialBudget,
				RemainingBudget: a.Cfg.InitialBudget,
				Members:         []string{t.CaptainID},
			}
		}
		return auction.NewMachine(auction.NewState(teams, req.Players, auction.Rules{
			Increment:    a.Cfg.BidIncrement,
			RosterSize:   a.Cfg.RosterSize,
			BonusAmount:  a.Cfg.BonusAmount,
			BidWindowSec: a.Cfg.BidWindowSec,
			SoftCloseSec: a.Cfg.SoftCloseSec,
		})), nil

	case "draft":
		teams := make([]draft.Team, len(req.Teams))
		for i, t := range req.Teams {
			teams[i] = draft.Team{ID: t.ID, CaptainID: t.CaptainID, Members: []string{t.CaptainID}}
		}
		return draft.NewMachine(draft.NewState(teams, req.Players, draft.Rules{
			RosterSize:    a.Cfg.RosterSize,
			PickWindowSec: a.Cfg.PickWindowSec,
		})), nil

	case "roles":
		teams := make([]roles.TeamRoles, len(req.Teams))
		for i, t := range req.Teams {
			members := make([]roles.Member, len(t.Members))
			for j, m := range t.Members {
				members[j] = roles.Member{
					ID:        m.ID,
					Primary:   engine.Role(m.Primary),
					Secondary: engine.Role(m.Secondary),
				}
			}
			teams[i] = roles.TeamRoles{TeamID: t.ID, Members: members}
		}
		return roles.NewMachine(roles.NewState(teams, roles.Rules{
			SelectWindowSec: a.Cfg.RoleWindowSec,
		}), a.Bracket), nil

	default:
		return nil, errUnknownFormat
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
