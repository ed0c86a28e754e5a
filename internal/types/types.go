package types

import (
	"encoding/json"

	"github.com/tactics-arena/arena-backend/internal/engine"
)

// Message type names on the wire. Clients send join_match and action;
// everything else flows server to client.
const (
	MsgJoinMatch = "join_match"
	MsgAction    = "action"

	MsgMatchJoined        = "match_joined"
	MsgGameReady          = "game_ready"
	MsgStateUpdate        = "state_update"
	MsgGameOver           = "game_over"
	MsgTimeout            = "timeout"
	MsgPlayerDisconnected = "player_disconnected"
	MsgMatchTerminated    = "match_terminated"
	MsgError              = "validation_error"
)

// Error codes carried in validation_error payloads.
const (
	CodeProtocolError   = "PROTOCOL_ERROR"
	CodeMatchFull       = "MATCH_FULL"
	CodeDuplicatePlayer = "DUPLICATE_PLAYER"
	CodeAlreadyJoined   = "ALREADY_JOINED"
	CodeNotJoined       = "NOT_JOINED"
	CodeIllegalAction   = "ILLEGAL_ACTION"
	CodeWrongMatch      = "WRONG_MATCH"
	CodeMatchOver       = "MATCH_OVER"
)

// ActionDraftPick is the one actionType handled outside the board engine.
const ActionDraftPick = "DRAFT_PICK"

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type JoinMatchPayload struct {
	MatchID  string `json:"matchId"`
	PlayerID string `json:"playerId"`
}

// ActionPayload is the flattened action envelope. TargetX and TargetY are
// pointers because 0 is a valid coordinate and absence must be detectable.
type ActionPayload struct {
	PlayerID     string `json:"playerId"`
	ActionType   string `json:"actionType"`
	MatchID      string `json:"matchId,omitempty"`
	HeroClass    string `json:"heroClass,omitempty"`
	Minion1      string `json:"minion1,omitempty"`
	Minion2      string `json:"minion2,omitempty"`
	TargetX      *int   `json:"targetX,omitempty"`
	TargetY      *int   `json:"targetY,omitempty"`
	TargetUnitID string `json:"targetUnitId,omitempty"`
}

type MatchJoinedPayload struct {
	MatchID  string    `json:"matchId"`
	PlayerID string    `json:"playerId"`
	State    *Snapshot `json:"state"`
}

type GameReadyPayload struct {
	Message string `json:"message"`
}

type StateUpdatePayload struct {
	State           *Snapshot  `json:"state"`
	CurrentPlayerID string     `json:"currentPlayerId,omitempty"`
	Timer           *TimerInfo `json:"timer,omitempty"`
}

type GameOverPayload struct {
	Winner string    `json:"winner"`
	State  *Snapshot `json:"state"`
}

type TimeoutPayload struct {
	TimerType    string     `json:"timerType"`
	PlayerID     string     `json:"playerId"`
	Penalty      string     `json:"penalty,omitempty"`
	AutoAction   string     `json:"autoAction"`
	State        *Snapshot  `json:"state"`
	NextTimer    *TimerInfo `json:"nextTimer,omitempty"`
	NextPlayerID string     `json:"nextPlayerId,omitempty"`
}

type TimerInfo struct {
	Type     string `json:"type"`
	Seconds  int    `json:"seconds"`
	PlayerID string `json:"playerId,omitempty"`
}

type PlayerDisconnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type MatchTerminatedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is the full match view broadcast to clients. Game is nil until
// the draft completes.
type Snapshot struct {
	MatchID         string        `json:"matchId"`
	Phase           string        `json:"phase"`
	Players         []PlayerInfo  `json:"players"`
	CurrentPlayerID string        `json:"currentPlayerId,omitempty"`
	Winner          string        `json:"winner,omitempty"`
	Game            *engine.State `json:"game,omitempty"`
}

type PlayerInfo struct {
	PlayerID  string   `json:"playerId"`
	Connected bool     `json:"connected"`
	Ready     bool     `json:"ready"`
	HeroClass string   `json:"heroClass,omitempty"`
	Minions   []string `json:"minions,omitempty"`
}
