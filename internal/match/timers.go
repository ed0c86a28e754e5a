package match

import (
	"time"

	"github.com/tactics-arena/arena-backend/internal/engine"
	"github.com/tactics-arena/arena-backend/internal/types"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

const timerKindAction = "ACTION"
const timerKindDraft = "DRAFT"

// timerState tracks the single armed clock for the match. gen guards
// against a timer firing after it was logically replaced: every arm or
// stop bumps it and stale firings are dropped on the floor.
type timerState struct {
	gen      int
	kind     string
	player   engine.PlayerID
	deadline time.Time
	timer    *time.Timer
	idle     *time.Timer
}

// post delivers an internally generated message to the actor. Runs on
// timer goroutines; the ctx guard keeps them from hanging once the
// actor is gone.
func (m *Match) post(msg Msg) {
	select {
	case m.inbox <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Match) armTurnTimer(p engine.PlayerID) {
	m.stopTimers()
	if !m.cfg.Enabled || m.cfg.TurnTimeout <= 0 {
		return
	}

	m.timer.kind = timerKindAction
	m.timer.player = p
	m.timer.deadline = time.Now().Add(m.cfg.TurnTimeout)
	gen := m.timer.gen
	m.timer.timer = time.AfterFunc(m.cfg.TurnTimeout+m.cfg.Grace, func() {
		m.post(timerFired{gen: gen})
	})
}

func (m *Match) armDraftTimer() {
	m.stopTimers()
	if !m.cfg.Enabled || m.cfg.DraftTimeout <= 0 {
		return
	}

	m.timer.kind = timerKindDraft
	m.timer.player = ""
	m.timer.deadline = time.Now().Add(m.cfg.DraftTimeout)
	gen := m.timer.gen
	m.timer.timer = time.AfterFunc(m.cfg.DraftTimeout+m.cfg.Grace, func() {
		m.post(timerFired{gen: gen})
	})
}

func (m *Match) stopTimers() {
	m.timer.gen++
	if m.timer.timer != nil {
		m.timer.timer.Stop()
		m.timer.timer = nil
	}
}

// timerInfo reports the armed clock for client payloads, with seconds
// remaining rather than the configured duration.
func (m *Match) timerInfo() *types.TimerInfo {
	if m.timer.timer == nil {
		return nil
	}
	remaining := int(time.Until(m.timer.deadline).Round(time.Second).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	info := &types.TimerInfo{Type: m.timer.kind, Seconds: remaining}
	if m.timer.kind == timerKindAction {
		info.PlayerID = string(m.timer.player)
	}
	return info
}

func (m *Match) handleTimerFired(gen int) {
	if gen != m.timer.gen {
		return
	}
	switch m.timer.kind {
	case timerKindAction:
		m.timeoutTurn()
	case timerKindDraft:
		m.timeoutDraft()
	}
}

func (m *Match) timeoutTurn() {
	if m.phase != PhaseInProgress {
		return
	}

	prev := m.game.Current
	events, next, err := engine.ApplyTimeout(m.game)
	if err != nil {
		return
	}
	m.game = next
	m.turns += countEvents(events, engine.EvtTurnEnded)
	logger.Info("turn timed out", "match", m.id, "player", prev)

	payload := types.TimeoutPayload{
		TimerType:  timerKindAction,
		PlayerID:   string(prev),
		AutoAction: string(engine.ActionEndTurn),
		State:      m.snapshot(),
	}
	if engine.ContainsEvent(events, engine.EvtTimeoutPenalty) {
		payload.Penalty = "HERO_HP"
	}

	if next.GameOver {
		m.broadcast(types.ServerMessage{Type: types.MsgTimeout, Payload: payload})
		m.finishGame()
		return
	}

	m.armTurnTimer(next.Current)
	payload.State = m.snapshot()
	payload.NextTimer = m.timerInfo()
	payload.NextPlayerID = string(next.Current)
	m.broadcast(types.ServerMessage{Type: types.MsgTimeout, Payload: payload})
}

var defaultPick = engine.DraftPick{
	Hero:    engine.HeroWarrior,
	Minions: [2]engine.MinionType{engine.MinionTank, engine.MinionTank},
}

// timeoutDraft fills every missing pick with the default squad so the
// game can start without the stragglers.
func (m *Match) timeoutDraft() {
	if m.phase != PhaseDraft {
		return
	}

	var defaulted []*player
	for _, p := range m.players {
		if !p.picked {
			p.pick = defaultPick
			p.picked = true
			defaulted = append(defaulted, p)
		}
	}
	logger.Info("draft timed out", "match", m.id, "defaulted", len(defaulted))

	for _, p := range defaulted {
		m.broadcast(types.ServerMessage{
			Type: types.MsgTimeout,
			Payload: types.TimeoutPayload{
				TimerType:  timerKindDraft,
				PlayerID:   string(p.id),
				AutoAction: types.ActionDraftPick,
				State:      m.snapshot(),
			},
		})
	}

	if m.allPicked() {
		m.startGame()
	}
}

func (m *Match) armIdle() {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	m.timer.idle = time.AfterFunc(m.cfg.IdleTimeout, func() {
		m.post(idleFired{})
	})
}

// handleIdleFired reaps matches nobody is playing. Returns true when the
// actor should exit.
func (m *Match) handleIdleFired() bool {
	idleFor := time.Since(m.lastActivity)
	if idleFor < m.cfg.IdleTimeout {
		m.timer.idle = time.AfterFunc(m.cfg.IdleTimeout-idleFor, func() {
			m.post(idleFired{})
		})
		return false
	}

	if m.phase == PhaseGameOver {
		// Completed match lingering past its welcome; close it out
		// without an abandonment.
		m.broadcast(types.ServerMessage{
			Type:    types.MsgMatchTerminated,
			Payload: types.MatchTerminatedPayload{Reason: "match complete"},
		})
		return true
	}

	m.abandon("idle timeout")
	return true
}
