package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

const (
	SubjectMatchCreated   = "arena.match.created"
	SubjectMatchStarted   = "arena.match.started"
	SubjectMatchFinished  = "arena.match.finished"
	SubjectMatchAbandoned = "arena.match.abandoned"
)

// Publisher pushes match lifecycle events onto NATS for anything
// downstream (matchmaking, stats, lobbies list) that wants them.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials NATS. An empty url disables publishing: it returns a nil
// publisher, and every method tolerates a nil receiver.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.nc.Drain()
}

type matchEvent struct {
	MatchID    string    `json:"matchId"`
	Winner     string    `json:"winner,omitempty"`
	Loser      string    `json:"loser,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	Turns      int       `json:"turns,omitempty"`
	DurationMS int64     `json:"durationMs,omitempty"`
	At         time.Time `json:"at"`
}

func (p *Publisher) MatchCreated(matchID string) {
	p.publish(SubjectMatchCreated, matchEvent{MatchID: matchID, At: time.Now()})
}

func (p *Publisher) MatchStarted(matchID string) {
	p.publish(SubjectMatchStarted, matchEvent{MatchID: matchID, At: time.Now()})
}

func (p *Publisher) MatchFinished(r match.Result) {
	p.publish(SubjectMatchFinished, resultEvent(r))
}

func (p *Publisher) MatchAbandoned(r match.Result) {
	p.publish(SubjectMatchAbandoned, resultEvent(r))
}

func resultEvent(r match.Result) matchEvent {
	return matchEvent{
		MatchID:    r.MatchID,
		Winner:     r.Winner,
		Loser:      r.Loser,
		Phase:      string(r.Phase),
		Turns:      r.Turns,
		DurationMS: r.Duration.Milliseconds(),
		At:         time.Now(),
	}
}

func (p *Publisher) publish(subject string, evt matchEvent) {
	if p == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Error("encode event", "subject", subject, "error", err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		logger.Error("publish event", "subject", subject, "error", err)
	}
}
