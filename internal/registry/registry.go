// Package registry owns the table of live formation sessions. It is an actor
// like the sessions it manages: all lookups and mutations go through the
// inbox, and a janitor sweep evicts sessions whose TTL has lapsed so an idle
// formation expires instead of leaking.
package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mintscrew-bar/project-nexus-sub000/internal/engine"
	"github.com/mintscrew-bar/project-nexus-sub000/internal/session"
)

type Msg interface{ isRegistryMsg() }

type Create struct {
	ID      string
	Machine engine.Machine
	Reply   chan *session.Session
}

type Get struct {
	ID    string
	Reply chan *session.Session
}

type Remove struct{ ID string }

type Shutdown struct{}

type sweep struct{}

func (Create) isRegistryMsg()   {}
func (Get) isRegistryMsg()      {}
func (Remove) isRegistryMsg()   {}
func (Shutdown) isRegistryMsg() {}
func (sweep) isRegistryMsg()    {}

type entry struct {
	sess      *session.Session
	expiresAt time.Time
}

type Registry struct {
	inbox    chan Msg
	sessions map[string]entry
	ttl      time.Duration
	archive  session.Archive
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, ttl time.Duration, archive session.Archive, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:    make(chan Msg, 64),
		sessions: make(map[string]entry),
		ttl:      ttl,
		archive:  archive,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	janitor := time.NewTicker(time.Minute)
	defer janitor.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-janitor.C:
			r.evictExpired(time.Now())

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				if e, ok := r.sessions[msg.ID]; ok {
					msg.Reply <- e.sess
					break
				}
				sess := session.New(r.ctx, msg.ID, msg.Machine, r.archive, r.log)
				r.sessions[msg.ID] = entry{sess: sess, expiresAt: time.Now().Add(r.ttl)}
				msg.Reply <- sess

			case Get:
				e, ok := r.sessions[msg.ID]
				if !ok {
					msg.Reply <- nil
					break
				}
				// Any lookup keeps an active session alive for another TTL.
				e.expiresAt = time.Now().Add(r.ttl)
				r.sessions[msg.ID] = e
				msg.Reply <- e.sess

			case Remove:
				if e, ok := r.sessions[msg.ID]; ok {
					e.sess.Inbox() <- session.Shutdown{}
					delete(r.sessions, msg.ID)
				}

			case sweep:
				// test hook: run an eviction pass immediately
				r.evictExpired(time.Now())

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) evictExpired(now time.Time) {
	for id, e := range r.sessions {
		if now.Before(e.expiresAt) {
			continue
		}
		r.log.Info("evicting expired session", zap.String("session_id", id))
		e.sess.Inbox() <- session.Shutdown{}
		delete(r.sessions, id)
	}
}

func (r *Registry) shutdown() {
	for id, e := range r.sessions {
		e.sess.Inbox() <- session.Shutdown{}
		delete(r.sessions, id)
	}
	r.cancel()
}
