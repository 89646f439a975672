package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/registry"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/session"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/types"
)

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		// Caller identity is verified by the surrounding system; here it
		// arrives as a trusted query param on the authenticated socket.
		// A socket without one gets no command surface at all.
		actorID := r.URL.Query().Get("actor")
		if actorID == "" {
			http.Error(w, "missing actor", http.StatusBadRequest)
			return
		}

		lookup := make(chan *session.Session, 1)
		reg.Inbox() <- registry.Get{ID: sessionID, Reply: lookup}
		sess := <-lookup
		if sess == nil {
			http.Error(w, engine.ErrSessionNotFound.Error(), http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 16)
		clientID := randID(6)

		sess.Inbox() <- session.Join{ClientID: clientID, Outbox: out}
		defer func() { sess.Inbox() <- session.Leave{ClientID: clientID} }()

		// Writer goroutine, bound to writeCancel so it cannot outlive the
		// handler even if the session was evicted before Join landed and the
		// outbox is never closed.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go pumpSnapshots(writeCtx, out, func(ctx context.Context, payload []byte) error {
			return conn.Write(ctx, websocket.MessageText, payload)
		})

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			cmd, ok := toCommand(cm, actorID)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}

			reply := make(chan session.Result, 1)
			sess.Inbox() <- session.FromClient{Cmd: cmd, Reply: reply}
			if res := <-reply; res.Err != nil {
				log.Debug("command rejected",
					zap.String("session_id", sessionID),
					zap.String("type", string(cmd.Type)),
					zap.Error(res.Err))
				writeError(writeCtx, conn, res.Err.Error())
			}
		}
	}
}

func pumpSnapshots(ctx context.Context, out <-chan session.Snapshot, write func(context.Context, []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-out:
			if !ok {
				return
			}
			msg := types.ServerMessage{
				Type:        "StateSnapshot",
				Version:     snap.Version,
				Events:      snap.Events,
				State:       snap.State,
				RemainingMS: snap.RemainingMS,
			}
			payload, _ := json.Marshal(msg)
			wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = write(wctx, payload)
			cancel()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func toCommand(m types.ClientMessage, actorID string) (engine.Command, bool) {
	cmd := engine.Command{
		ActorID:  actorID,
		TeamID:   m.TeamID,
		PlayerID: m.PlayerID,
		Amount:   m.Amount,
		Role:     engine.Role(m.Role),
	}
	switch m.Type {
	case "PlaceBid":
		cmd.Type = engine.CmdPlaceBid
	case "ResolveNominee":
		cmd.Type = engine.CmdResolveNominee
	case "MakePick":
		cmd.Type = engine.CmdMakePick
	case "AutoPick":
		cmd.Type = engine.CmdAutoPick
	case "SelectRole":
		cmd.Type = engine.CmdSelectRole
	case "CompleteRoles":
		cmd.Type = engine.CmdCompleteRoles
	default:
		return engine.Command{}, false
	}
	return cmd, true
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
