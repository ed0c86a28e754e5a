package hub

import (
	"context"

	"github.com/tactics-arena/arena-backend/internal/archive"
	"github.com/tactics-arena/arena-backend/internal/events"
	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

type HubMsg interface{ isHubMsg() }

type CreateMatch struct {
	ID    string
	Reply chan *match.Match
}

type GetMatch struct {
	ID    string
	Reply chan *match.Match
}

type EnsureMatch struct {
	ID    string
	Reply chan *match.Match
}

type RemoveMatch struct {
	ID string
}

type ListMatches struct {
	Reply chan []*match.Match
}

// Sweep drops matches whose actors have exited. Reply is optional; when
// set it receives the number of matches removed.
type Sweep struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateMatch) isHubMsg() {}
func (GetMatch) isHubMsg()    {}
func (EnsureMatch) isHubMsg() {}
func (RemoveMatch) isHubMsg() {}
func (ListMatches) isHubMsg() {}
func (Sweep) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

// Deps are the side-effect sinks a match plugs into. Archive and Events
// may be nil; both tolerate it.
type Deps struct {
	MatchConfig match.Config
	Archive     *archive.Store
	Events      *events.Publisher
}

type Hub struct {
	inbox   chan HubMsg
	matches map[string]*match.Match
	deps    Deps
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		matches: make(map[string]*match.Match),
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				if mt := h.matches[msg.ID]; mt != nil {
					msg.Reply <- mt
					break
				}
				msg.Reply <- h.spawn(msg.ID)

			case GetMatch:
				msg.Reply <- h.matches[msg.ID] // may be nil

			case EnsureMatch:
				if mt := h.matches[msg.ID]; mt != nil {
					msg.Reply <- mt
					break
				}
				msg.Reply <- h.spawn(msg.ID)

			case RemoveMatch:
				delete(h.matches, msg.ID)

			case ListMatches:
				list := make([]*match.Match, 0, len(h.matches))
				for _, mt := range h.matches {
					list = append(list, mt)
				}
				msg.Reply <- list

			case Sweep:
				removed := h.sweep()
				if msg.Reply != nil {
					msg.Reply <- removed
				}

			case ShutdownHub:
				for _, mt := range h.matches {
					_ = mt.Send(match.Shutdown{})
				}
				clear(h.matches)
				h.cancel()
			}
		}
	}
}

func (h *Hub) spawn(id string) *match.Match {
	mt := match.NewMatch(h.ctx, id, h.deps.MatchConfig, h.hooksFor(id))
	h.matches[id] = mt
	logger.Info("match created", "match", id, "open", len(h.matches))
	h.deps.Events.MatchCreated(id)
	return mt
}

// hooksFor wires a match's lifecycle into the archive and the event bus.
// Hooks run on the match goroutine, so the slow parts are pushed onto
// their own goroutine here.
func (h *Hub) hooksFor(id string) match.Hooks {
	return match.Hooks{
		OnStarted: func() {
			go h.deps.Events.MatchStarted(id)
		},
		OnFinished: func(r match.Result) {
			go func() {
				h.deps.Events.MatchFinished(r)
				h.deps.Archive.SaveResult(r)
			}()
		},
		OnAbandoned: func(r match.Result) {
			go func() {
				h.deps.Events.MatchAbandoned(r)
				h.deps.Archive.SaveResult(r)
			}()
		},
	}
}

// sweep prunes registry entries for matches that already stopped on
// their own (reaped for idleness, abandoned, or played out).
func (h *Hub) sweep() int {
	removed := 0
	for id, mt := range h.matches {
		select {
		case <-mt.Done():
			delete(h.matches, id)
			removed++
		default:
		}
	}
	if removed > 0 {
		logger.Info("swept finished matches", "removed", removed, "open", len(h.matches))
	}
	return removed
}
