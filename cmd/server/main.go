package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/config"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/httpapi"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/registry"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/session"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Timers are in-process: a restart drops armed deadlines, but the session
	// blob (with its deadline) is persisted so a supervisor can re-create and
	// re-arm sessions that still matter.
	var archive session.Archive
	if cfg.DatabaseDSN != "" {
		st, err := store.New(cfg.DatabaseDSN, cfg.SessionTTL())
		if err != nil {
			log.Fatal("open store", zap.Error(err))
		}
		st.StartPurgeLoop(ctx, time.Minute, log)
		archive = st
	} else {
		log.Warn("DATABASE_DSN empty, audit trail and snapshots disabled")
	}

	reg := registry.New(ctx, cfg.SessionTTL(), archive, log)

	// Bracket generation belongs to the surrounding tournament system; until
	// that collaborator is wired in, the role-completion gate stays open.
	api := &httpapi.API{Reg: reg, Cfg: cfg, Log: log}
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: httpapi.SetupRoutes(api)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		reg.Inbox() <- registry.Shutdown{}
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
