package match

import (
	"context"
	"errors"
	"time"

	"github.com/tactics-arena/arena-backend/internal/engine"
	"github.com/tactics-arena/arena-backend/internal/types"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

var ErrMatchFull = errors.New("match is full")
var ErrDuplicatePlayer = errors.New("player id already taken")
var ErrUnknownPlayer = errors.New("player not in this match")
var ErrWrongPhase = errors.New("action not allowed in this phase")
var ErrPickAlreadyMade = errors.New("draft pick already submitted")
var ErrInvalidDraftPick = errors.New("invalid draft pick")
var ErrUnknownAction = errors.New("unknown action type")
var ErrMatchOver = errors.New("match is over")
var ErrMatchClosed = errors.New("match closed")

type Phase string

const (
	PhaseWaiting    Phase = "WAITING_FOR_PLAYERS"
	PhaseDraft      Phase = "DRAFT"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseGameOver   Phase = "GAME_OVER"
	PhaseAbandoned  Phase = "ABANDONED"
)

const maxPlayers = 2

// Config carries the clocks a match runs on. Enabled false turns every
// timer off, which tests rely on.
type Config struct {
	Enabled      bool
	TurnTimeout  time.Duration
	DraftTimeout time.Duration
	Grace        time.Duration
	IdleTimeout  time.Duration
}

// Hooks are called from the match goroutine at lifecycle transitions.
// They must not block; wrap slow work in a goroutine.
type Hooks struct {
	OnStarted   func()
	OnFinished  func(Result)
	OnAbandoned func(Result)
}

// Result summarizes a finished or abandoned match for archival.
type Result struct {
	MatchID  string
	Phase    Phase
	Winner   string
	Loser    string
	Turns    int
	Duration time.Duration
}

type Msg interface{ isMatchMsg() }

// Join binds a connection to a seat. Reply must be buffered (cap 1).
type Join struct {
	PlayerID string
	ConnID   string
	Outbox   chan types.ServerMessage
	Reply    chan JoinReply
}

func (Join) isMatchMsg() {}

type JoinReply struct {
	State *types.Snapshot
	Err   error
}

// Detach unbinds a dead connection. The seat stays taken; there is no
// reconnection.
type Detach struct {
	PlayerID string
	ConnID   string
}

func (Detach) isMatchMsg() {}

// FromPlayer carries one action envelope. Reply must be buffered (cap 1).
type FromPlayer struct {
	PlayerID string
	Action   types.ActionPayload
	Reply    chan ActionReply
}

func (FromPlayer) isMatchMsg() {}

// ActionReply reports the validation outcome to the sender only. Resync
// is set alongside Err for rejected board actions so the sender can be
// brought back in line with the authoritative state.
type ActionReply struct {
	Err    error
	Resync *types.Snapshot
}

type GetState struct {
	Reply chan *types.Snapshot
}

func (GetState) isMatchMsg() {}

// GetView reflects internal state for tests without data races.
type GetView struct {
	Reply chan View
}

func (GetView) isMatchMsg() {}

type View struct {
	Phase      Phase
	NumPlayers int
	Connected  int
	Current    string
	Winner     string
	Turns      int
}

type Shutdown struct{}

func (Shutdown) isMatchMsg() {}

type timerFired struct{ gen int }

func (timerFired) isMatchMsg() {}

type idleFired struct{}

func (idleFired) isMatchMsg() {}

type player struct {
	id     engine.PlayerID
	connID string
	outbox chan types.ServerMessage // nil once disconnected
	pick   engine.DraftPick
	picked bool
}

// Match is an actor: one goroutine owns all state and everything else
// talks to it through the inbox.
type Match struct {
	id     string
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	cfg   Config
	hooks Hooks

	phase     Phase
	players   []*player
	game      engine.State
	turns     int
	startedAt time.Time

	timer        timerState
	lastActivity time.Time

	result Result // valid once done is closed
}

func NewMatch(parent context.Context, id string, cfg Config, hooks Hooks) *Match {
	ctx, cancel := context.WithCancel(parent)

	m := &Match{
		id:           id,
		inbox:        make(chan Msg, 64),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		cfg:          cfg,
		hooks:        hooks,
		phase:        PhaseWaiting,
		lastActivity: time.Now(),
	}

	m.armIdle()
	go m.loop()
	return m
}

func (m *Match) ID() string { return m.id }

// Done is closed after the actor exits. Result is safe to read once Done
// is closed.
func (m *Match) Done() <-chan struct{} { return m.done }

func (m *Match) Result() Result { return m.result }

// Send delivers msg to the actor, or reports ErrMatchClosed once the
// actor has exited.
func (m *Match) Send(msg Msg) error {
	select {
	case m.inbox <- msg:
		return nil
	case <-m.done:
		return ErrMatchClosed
	}
}

func (m *Match) loop() {
	defer func() {
		m.shutdown()
		close(m.done)
	}()

	for {
		select {
		case <-m.ctx.Done():
			return

		case raw := <-m.inbox:
			switch msg := raw.(type) {
			case Join:
				msg.Reply <- m.handleJoin(msg)

			case Detach:
				m.handleDetach(msg)

			case FromPlayer:
				msg.Reply <- m.handleAction(msg)

			case GetState:
				msg.Reply <- m.snapshot()

			case GetView:
				msg.Reply <- m.view()

			case timerFired:
				m.handleTimerFired(msg.gen)

			case idleFired:
				if m.handleIdleFired() {
					return
				}

			case Shutdown:
				return
			}
		}
	}
}

func (m *Match) handleJoin(msg Join) JoinReply {
	m.touch()

	for _, p := range m.players {
		if string(p.id) == msg.PlayerID {
			return JoinReply{Err: ErrDuplicatePlayer}
		}
	}
	if len(m.players) >= maxPlayers {
		return JoinReply{Err: ErrMatchFull}
	}
	if m.phase != PhaseWaiting {
		// Only reachable if a seat emptied mid-match; seats are never
		// reused, so a late joiner is turned away.
		return JoinReply{Err: ErrMatchFull}
	}

	p := &player{
		id:     engine.PlayerID(msg.PlayerID),
		connID: msg.ConnID,
		outbox: msg.Outbox,
	}
	m.players = append(m.players, p)
	logger.Info("player joined", "match", m.id, "player", msg.PlayerID, "seats", len(m.players))

	becameFull := len(m.players) == maxPlayers
	if becameFull {
		m.phase = PhaseDraft
		m.armDraftTimer()
	}

	// The join ack goes to the new player before any draft broadcast so
	// their first message is always match_joined.
	snap := m.snapshot()
	m.sendTo(p, types.ServerMessage{
		Type:    types.MsgMatchJoined,
		Payload: types.MatchJoinedPayload{MatchID: m.id, PlayerID: msg.PlayerID, State: snap},
	})

	if becameFull {
		logger.Info("draft started", "match", m.id)
		m.broadcast(types.ServerMessage{
			Type:    types.MsgGameReady,
			Payload: types.GameReadyPayload{Message: "Both players connected. Draft your squad."},
		})
		m.broadcastState()
	}
	return JoinReply{State: snap}
}

func (m *Match) handleDetach(msg Detach) {
	p := m.playerByID(msg.PlayerID)
	if p == nil {
		return
	}
	if p.connID != "" && p.connID != msg.ConnID {
		// Detach from a connection that no longer holds the seat.
		return
	}

	alreadyGone := p.outbox == nil
	if !alreadyGone {
		close(p.outbox)
		p.outbox = nil
	}
	p.connID = ""
	logger.Info("player disconnected", "match", m.id, "player", msg.PlayerID)

	if m.phase == PhaseGameOver || m.phase == PhaseAbandoned {
		return
	}
	if !alreadyGone {
		m.broadcast(types.ServerMessage{
			Type:    types.MsgPlayerDisconnected,
			Payload: types.PlayerDisconnectedPayload{PlayerID: msg.PlayerID},
		})
	}
	if m.allDisconnected() {
		m.abandon("all players disconnected")
	}
}

func (m *Match) handleAction(msg FromPlayer) ActionReply {
	m.touch()

	p := m.playerByID(msg.PlayerID)
	if p == nil {
		return ActionReply{Err: ErrUnknownPlayer}
	}

	if msg.Action.ActionType == types.ActionDraftPick {
		return ActionReply{Err: m.handleDraftPick(p, msg.Action)}
	}
	return m.handleBoardAction(p, msg.Action)
}

func (m *Match) handleDraftPick(p *player, a types.ActionPayload) error {
	if m.phase != PhaseDraft {
		if m.phase == PhaseGameOver || m.phase == PhaseAbandoned {
			return ErrMatchOver
		}
		return ErrWrongPhase
	}
	if p.picked {
		return ErrPickAlreadyMade
	}

	hero, ok := engine.ParseHeroClass(a.HeroClass)
	if !ok {
		return ErrInvalidDraftPick
	}
	m1, ok := engine.ParseMinionType(a.Minion1)
	if !ok {
		return ErrInvalidDraftPick
	}
	m2, ok := engine.ParseMinionType(a.Minion2)
	if !ok {
		return ErrInvalidDraftPick
	}

	p.pick = engine.DraftPick{Hero: hero, Minions: [2]engine.MinionType{m1, m2}}
	p.picked = true
	logger.Info("draft pick", "match", m.id, "player", p.id, "hero", hero)

	if m.allPicked() {
		m.startGame()
	} else {
		m.broadcastState()
	}
	return nil
}

func (m *Match) startGame() {
	players := [2]engine.PlayerID{m.players[0].id, m.players[1].id}
	picks := [2]engine.DraftPick{m.players[0].pick, m.players[1].pick}

	m.game = engine.NewGame(players, picks)
	m.phase = PhaseInProgress
	m.startedAt = time.Now()
	m.armTurnTimer(m.game.Current)
	logger.Info("game started", "match", m.id, "first", m.game.Current)

	if m.hooks.OnStarted != nil {
		m.hooks.OnStarted()
	}
	m.broadcastState()
}

func (m *Match) handleBoardAction(p *player, a types.ActionPayload) ActionReply {
	switch m.phase {
	case PhaseInProgress:
	case PhaseGameOver, PhaseAbandoned:
		return ActionReply{Err: ErrMatchOver, Resync: m.snapshot()}
	default:
		return ActionReply{Err: ErrWrongPhase}
	}

	kind, ok := engine.ParseActionType(a.ActionType)
	if !ok {
		return ActionReply{Err: ErrUnknownAction}
	}

	action := engine.Action{
		Type:         kind,
		Player:       p.id,
		TargetUnitID: a.TargetUnitID,
	}
	if a.TargetX != nil && a.TargetY != nil {
		action.Target = &engine.Position{X: *a.TargetX, Y: *a.TargetY}
	}

	events, next, err := engine.Apply(m.game, action)
	if err != nil {
		return ActionReply{Err: err, Resync: m.snapshot()}
	}

	prev := m.game.Current
	m.game = next
	m.turns += countEvents(events, engine.EvtTurnEnded)

	if next.GameOver {
		m.finishGame()
		return ActionReply{}
	}

	if next.Current != prev {
		m.armTurnTimer(next.Current)
	}
	m.broadcastState()
	return ActionReply{}
}

func (m *Match) finishGame() {
	m.phase = PhaseGameOver
	m.stopTimers()
	logger.Info("game over", "match", m.id, "winner", m.game.Winner, "turns", m.turns)

	// The terminal action broadcasts game_over in place of the usual
	// state_update; the payload carries the final state.
	m.broadcast(types.ServerMessage{
		Type:    types.MsgGameOver,
		Payload: types.GameOverPayload{Winner: string(m.game.Winner), State: m.snapshot()},
	})

	m.result = m.buildResult()
	if m.hooks.OnFinished != nil {
		m.hooks.OnFinished(m.result)
	}
}

// abandon tears the match down before a normal finish. The actor keeps
// running only long enough for the registry sweep to collect it.
func (m *Match) abandon(reason string) {
	if m.phase == PhaseGameOver || m.phase == PhaseAbandoned {
		return
	}
	m.phase = PhaseAbandoned
	m.stopTimers()
	logger.Info("match abandoned", "match", m.id, "reason", reason)

	m.broadcast(types.ServerMessage{
		Type:    types.MsgMatchTerminated,
		Payload: types.MatchTerminatedPayload{Reason: reason},
	})

	m.result = m.buildResult()
	if m.hooks.OnAbandoned != nil {
		m.hooks.OnAbandoned(m.result)
	}
	m.cancel()
}

func (m *Match) buildResult() Result {
	r := Result{
		MatchID: m.id,
		Phase:   m.phase,
		Winner:  string(m.game.Winner),
		Turns:   m.turns,
	}
	if !m.startedAt.IsZero() {
		r.Duration = time.Since(m.startedAt)
	}
	if r.Winner != "" {
		r.Loser = string(m.game.Opponent(m.game.Winner))
	}
	return r
}

func (m *Match) shutdown() {
	for _, p := range m.players {
		if p.outbox != nil {
			close(p.outbox)
			p.outbox = nil
		}
	}
	if m.result.MatchID == "" {
		m.result = m.buildResult()
	}
	m.cancel()
}

func (m *Match) playerByID(id string) *player {
	for _, p := range m.players {
		if string(p.id) == id {
			return p
		}
	}
	return nil
}

func (m *Match) allPicked() bool {
	if len(m.players) < maxPlayers {
		return false
	}
	for _, p := range m.players {
		if !p.picked {
			return false
		}
	}
	return true
}

func (m *Match) allDisconnected() bool {
	for _, p := range m.players {
		if p.outbox != nil {
			return false
		}
	}
	return len(m.players) > 0
}

func (m *Match) touch() {
	m.lastActivity = time.Now()
}

func (m *Match) view() View {
	connected := 0
	for _, p := range m.players {
		if p.outbox != nil {
			connected++
		}
	}
	return View{
		Phase:      m.phase,
		NumPlayers: len(m.players),
		Connected:  connected,
		Current:    string(m.game.Current),
		Winner:     string(m.game.Winner),
		Turns:      m.turns,
	}
}

func countEvents(events []engine.Event, t engine.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}
