package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/ws"
)

func SetupRoutes(a *API) http.Handler {
	r := chi.NewRouter()

	r.Post("/sessions", a.CreateSession)
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(a.Reg, a.Log))
	return r
}
