package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tactics-arena/arena-backend/internal/engine"
	"github.com/tactics-arena/arena-backend/internal/hub"
	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/internal/types"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

const (
	// readTimeout bounds a single read. Players legitimately sit idle
	// through the opponent's whole draft, so this stays well above the
	// draft clock.
	readTimeout  = 5 * time.Minute
	writeTimeout = 3 * time.Second

	outboxSize = 16
)

// Handler upgrades to a websocket and speaks the match protocol. A
// connection is anonymous until its join_match is accepted; after that
// it is bound to one player in one match for its whole lifetime.
func Handler(h *hub.Hub, origins []string) http.HandlerFunc {
	opts := acceptOptions(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "closing")

		connID := uuid.NewString()
		out := make(chan types.ServerMessage, outboxSize)
		logger.Debug("ws connected", "conn", connID)

		var (
			joined   bool
			playerID string
			matchID  string
			mt       *match.Match
		)
		defer func() {
			logger.Debug("ws closed", "conn", connID, "player", playerID)
			if joined {
				_ = mt.Send(match.Detach{PlayerID: playerID, ConnID: connID})
			}
		}()

		// Writer goroutine. The match actor owns the outbox once the
		// join is accepted and closes it when it deregisters us; before
		// that, writeCtx is the only way out.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusNormalClosure, "match closed")
						return
					}
					payload, err := json.Marshal(msg)
					if err != nil {
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
						logger.Debug("ws write failed", "conn", connID, "err", err)
					}
					cancel()
				case <-writeCtx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeErr(r.Context(), conn, types.CodeProtocolError, "malformed message")
				continue
			}

			switch cm.Type {
			case types.MsgJoinMatch:
				if joined {
					writeErr(r.Context(), conn, types.CodeAlreadyJoined, "connection already joined a match")
					continue
				}
				var p types.JoinMatchPayload
				if err := json.Unmarshal(cm.Payload, &p); err != nil {
					writeErr(r.Context(), conn, types.CodeProtocolError, "malformed join_match payload")
					continue
				}
				p.MatchID = strings.TrimSpace(p.MatchID)
				p.PlayerID = strings.TrimSpace(p.PlayerID)
				if p.MatchID == "" || p.PlayerID == "" {
					writeErr(r.Context(), conn, types.CodeProtocolError, "matchId and playerId are required")
					continue
				}

				mReply := make(chan *match.Match, 1)
				h.Inbox() <- hub.EnsureMatch{ID: p.MatchID, Reply: mReply}
				candidate := <-mReply

				jReply := make(chan match.JoinReply, 1)
				if err := candidate.Send(match.Join{
					PlayerID: p.PlayerID,
					ConnID:   connID,
					Outbox:   out,
					Reply:    jReply,
				}); err != nil {
					writeErr(r.Context(), conn, types.CodeMatchOver, "match is closed")
					continue
				}
				var jr match.JoinReply
				select {
				case jr = <-jReply:
				case <-candidate.Done():
					writeErr(r.Context(), conn, types.CodeMatchOver, "match is closed")
					continue
				}
				if jr.Err != nil {
					writeErr(r.Context(), conn, errorCode(jr.Err), jr.Err.Error())
					continue
				}

				// The actor already queued the match_joined ack on our
				// outbox; all we record here is the binding.
				joined = true
				playerID = p.PlayerID
				matchID = p.MatchID
				mt = candidate

			case types.MsgAction:
				if !joined {
					writeErr(r.Context(), conn, types.CodeNotJoined, "join a match first")
					continue
				}
				var a types.ActionPayload
				if err := json.Unmarshal(cm.Payload, &a); err != nil {
					writeErr(r.Context(), conn, types.CodeProtocolError, "malformed action payload")
					continue
				}
				if a.PlayerID != "" && a.PlayerID != playerID {
					writeErr(r.Context(), conn, types.CodeIllegalAction, "playerId does not match this connection")
					continue
				}
				if a.MatchID != "" && a.MatchID != matchID {
					writeErr(r.Context(), conn, types.CodeWrongMatch, "matchId does not match this connection")
					continue
				}
				a.PlayerID = playerID

				aReply := make(chan match.ActionReply, 1)
				if err := mt.Send(match.FromPlayer{PlayerID: playerID, Action: a, Reply: aReply}); err != nil {
					writeErr(r.Context(), conn, types.CodeMatchOver, "match is closed")
					continue
				}
				var ar match.ActionReply
				select {
				case ar = <-aReply:
				case <-mt.Done():
					writeErr(r.Context(), conn, types.CodeMatchOver, "match is closed")
					continue
				}
				if ar.Err != nil {
					writeErr(r.Context(), conn, errorCode(ar.Err), ar.Err.Error())
					if ar.Resync != nil {
						writeMsg(r.Context(), conn, types.ServerMessage{
							Type: types.MsgStateUpdate,
							Payload: types.StateUpdatePayload{
								State:           ar.Resync,
								CurrentPlayerID: ar.Resync.CurrentPlayerID,
							},
						})
					}
				}

			default:
				writeErr(r.Context(), conn, types.CodeProtocolError, "unknown message type: "+cm.Type)
			}
		}
	}
}

// acceptOptions turns configured origins into websocket accept options.
// Origins may be full URLs or bare host patterns; "*" disables the
// check entirely.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}

// writeMsg writes directly from the reader goroutine. Safe alongside
// the writer goroutine; the connection serializes concurrent writes.
func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func writeErr(ctx context.Context, conn *websocket.Conn, code, message string) {
	writeMsg(ctx, conn, types.ServerMessage{
		Type:    types.MsgError,
		Payload: types.ErrorPayload{Code: code, Message: message},
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, match.ErrMatchFull):
		return types.CodeMatchFull
	case errors.Is(err, match.ErrDuplicatePlayer):
		return types.CodeDuplicatePlayer
	case errors.Is(err, match.ErrUnknownPlayer):
		return types.CodeNotJoined
	case errors.Is(err, match.ErrMatchOver),
		errors.Is(err, match.ErrMatchClosed),
		errors.Is(err, engine.ErrGameOver):
		return types.CodeMatchOver
	case errors.Is(err, match.ErrUnknownAction):
		return types.CodeProtocolError
	default:
		return types.CodeIllegalAction
	}
}
