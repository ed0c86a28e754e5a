package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/tactics-arena/arena-backend/internal/hub"
	"github.com/tactics-arena/arena-backend/internal/types"
)

func setupTestServer() (*hub.Hub, string, func()) {
	h := hub.NewHub(context.Background(), hub.Deps{})
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", Handler(h, []string{"*"}))
	srv := httptest.NewServer(mux)
	cleanup := func() {
		h.Inbox() <- hub.ShutdownHub{}
		srv.Close()
	}
	return h, srv.URL + "/ws", cleanup
}

func wsDial(ctx context.Context, t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func readMsg(ctx context.Context, t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg types.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid server JSON: %v\npayload: %s", err, data)
	}
	return msg
}

// decodePayload re-marshals the generic payload into a typed struct.
func decodePayload(t *testing.T, msg types.ServerMessage, out any) {
	t.Helper()
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("remarshal payload: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
}

func readErr(ctx context.Context, t *testing.T, conn *websocket.Conn) types.ErrorPayload {
	t.Helper()
	msg := readMsg(ctx, t, conn)
	if msg.Type != types.MsgError {
		t.Fatalf("expected %s, got %s", types.MsgError, msg.Type)
	}
	var p types.ErrorPayload
	decodePayload(t, msg, &p)
	return p
}

func sendJoin(ctx context.Context, t *testing.T, conn *websocket.Conn, matchID, playerID string) {
	t.Helper()
	msg := types.ClientMessage{
		Type:    types.MsgJoinMatch,
		Payload: mustMarshal(types.JoinMatchPayload{MatchID: matchID, PlayerID: playerID}),
	}
	if err := conn.Write(ctx, websocket.MessageText, mustMarshal(msg)); err != nil {
		t.Fatalf("write join: %v", err)
	}
}

func sendAction(ctx context.Context, t *testing.T, conn *websocket.Conn, p types.ActionPayload) {
	t.Helper()
	msg := types.ClientMessage{Type: types.MsgAction, Payload: mustMarshal(p)}
	if err := conn.Write(ctx, websocket.MessageText, mustMarshal(msg)); err != nil {
		t.Fatalf("write action: %v", err)
	}
}

func draftPick(player, hero, minion1, minion2 string) types.ActionPayload {
	return types.ActionPayload{
		PlayerID:   player,
		ActionType: types.ActionDraftPick,
		HeroClass:  hero,
		Minion1:    minion1,
		Minion2:    minion2,
	}
}

func boardAction(player, actionType string, x, y int) types.ActionPayload {
	return types.ActionPayload{PlayerID: player, ActionType: actionType, TargetX: &x, TargetY: &y}
}

func attack(player string, x, y int, targetUnit string) types.ActionPayload {
	a := boardAction(player, "ATTACK", x, y)
	a.TargetUnitID = targetUnit
	return a
}

func endTurn(player string) types.ActionPayload {
	return types.ActionPayload{PlayerID: player, ActionType: "END_TURN"}
}

// joinBoth seats alice and bob and drains both streams through the
// draft-opening broadcasts.
func joinBoth(ctx context.Context, t *testing.T, url, matchID string) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	connA := wsDial(ctx, t, url)
	sendJoin(ctx, t, connA, matchID, "alice")
	if msg := readMsg(ctx, t, connA); msg.Type != types.MsgMatchJoined {
		t.Fatalf("alice expected %s, got %s", types.MsgMatchJoined, msg.Type)
	}

	connB := wsDial(ctx, t, url)
	sendJoin(ctx, t, connB, matchID, "bob")
	if msg := readMsg(ctx, t, connB); msg.Type != types.MsgMatchJoined {
		t.Fatalf("bob expected %s, got %s", types.MsgMatchJoined, msg.Type)
	}

	for _, conn := range []*websocket.Conn{connA, connB} {
		if msg := readMsg(ctx, t, conn); msg.Type != types.MsgGameReady {
			t.Fatalf("expected %s, got %s", types.MsgGameReady, msg.Type)
		}
		if msg := readMsg(ctx, t, conn); msg.Type != types.MsgStateUpdate {
			t.Fatalf("expected %s, got %s", types.MsgStateUpdate, msg.Type)
		}
	}
	return connA, connB
}

func TestJoinFlow_TwoPlayers(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, url, cleanup := setupTestServer()
	defer cleanup()

	connA := wsDial(ctx, t, url)
	defer connA.Close(websocket.StatusNormalClosure, "")

	sendJoin(ctx, t, connA, "m1", "alice")

	msg := readMsg(ctx, t, connA)
	assert.Equal(types.MsgMatchJoined, msg.Type)

	var joined types.MatchJoinedPayload
	decodePayload(t, msg, &joined)
	assert.Equal("m1", joined.MatchID)
	assert.Equal("alice", joined.PlayerID)
	assert.Equal("WAITING_FOR_PLAYERS", joined.State.Phase)
	assert.Len(joined.State.Players, 1)

	connB := wsDial(ctx, t, url)
	defer connB.Close(websocket.StatusNormalClosure, "")

	sendJoin(ctx, t, connB, "m1", "bob")

	// Bob's ack reflects the draft already being open, and it arrives
	// before any broadcast on his connection.
	msg = readMsg(ctx, t, connB)
	assert.Equal(types.MsgMatchJoined, msg.Type)
	decodePayload(t, msg, &joined)
	assert.Equal("bob", joined.PlayerID)
	assert.Equal("DRAFT", joined.State.Phase)
	assert.Len(joined.State.Players, 2)

	for _, conn := range []*websocket.Conn{connA, connB} {
		ready := readMsg(ctx, t, conn)
		assert.Equal(types.MsgGameReady, ready.Type)

		var rp types.GameReadyPayload
		decodePayload(t, ready, &rp)
		assert.NotEmpty(rp.Message)

		update := readMsg(ctx, t, conn)
		assert.Equal(types.MsgStateUpdate, update.Type)

		var sp types.StateUpdatePayload
		decodePayload(t, update, &sp)
		assert.Equal("DRAFT", sp.State.Phase)
		assert.Empty(sp.CurrentPlayerID)
		assert.Equal("alice", sp.State.Players[0].PlayerID)
		assert.True(sp.State.Players[0].Connected)
		assert.False(sp.State.Players[0].Ready)
	}
}

func TestJoinRejections(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, url, cleanup := setupTestServer()
	defer cleanup()

	connA := wsDial(ctx, t, url)
	defer connA.Close(websocket.StatusNormalClosure, "")
	sendJoin(ctx, t, connA, "m1", "alice")
	readMsg(ctx, t, connA) // match_joined

	// Joining twice from the same connection
	sendJoin(ctx, t, connA, "m1", "zoe")
	assert.Equal(types.CodeAlreadyJoined, readErr(ctx, t, connA).Code)

	// Taking a name that is already seated
	connB := wsDial(ctx, t, url)
	defer connB.Close(websocket.StatusNormalClosure, "")
	sendJoin(ctx, t, connB, "m1", "alice")
	assert.Equal(types.CodeDuplicatePlayer, readErr(ctx, t, connB).Code)

	// A rejected join leaves the connection free to retry
	sendJoin(ctx, t, connB, "m1", "bob")
	msg := readMsg(ctx, t, connB)
	assert.Equal(types.MsgMatchJoined, msg.Type)

	// Third player bounces off the full match
	connC := wsDial(ctx, t, url)
	defer connC.Close(websocket.StatusNormalClosure, "")
	sendJoin(ctx, t, connC, "m1", "carol")
	assert.Equal(types.CodeMatchFull, readErr(ctx, t, connC).Code)
}

func TestActionRejections(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, url, cleanup := setupTestServer()
	defer cleanup()

	conn := wsDial(ctx, t, url)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Acting before joining
	sendAction(ctx, t, conn, endTurn("alice"))
	assert.Equal(types.CodeNotJoined, readErr(ctx, t, conn).Code)

	sendJoin(ctx, t, conn, "m1", "alice")
	readMsg(ctx, t, conn) // match_joined

	// Broken JSON
	err := conn.Write(ctx, websocket.MessageText, []byte("{boom"))
	assert.NoError(err)
	assert.Equal(types.CodeProtocolError, readErr(ctx, t, conn).Code)

	// Unknown envelope type
	err = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus","payload":{}}`))
	assert.NoError(err)
	assert.Equal(types.CodeProtocolError, readErr(ctx, t, conn).Code)

	// Acting as somebody else
	sendAction(ctx, t, conn, endTurn("bob"))
	perr := readErr(ctx, t, conn)
	assert.Equal(types.CodeIllegalAction, perr.Code)
	assert.Contains(perr.Message, "playerId")

	// Acting against a different match
	spoofed := endTurn("alice")
	spoofed.MatchID = "m2"
	sendAction(ctx, t, conn, spoofed)
	assert.Equal(types.CodeWrongMatch, readErr(ctx, t, conn).Code)
}

func TestDraftToFirstTurn(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, url, cleanup := setupTestServer()
	defer cleanup()

	connA, connB := joinBoth(ctx, t, url, "m1")
	defer connA.Close(websocket.StatusNormalClosure, "")
	defer connB.Close(websocket.StatusNormalClosure, "")

	// Alice locks her squad; both players see her marked ready.
	sendAction(ctx, t, connA, draftPick("alice", "WARRIOR", "TANK", "ARCHER"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMsg(ctx, t, conn)
		assert.Equal(types.MsgStateUpdate, msg.Type)

		var sp types.StateUpdatePayload
		decodePayload(t, msg, &sp)
		assert.Equal("DRAFT", sp.State.Phase)
		assert.True(sp.State.Players[0].Ready)
		assert.Equal("WARRIOR", sp.State.Players[0].HeroClass)
		assert.False(sp.State.Players[1].Ready)
	}

	// Bob's pick completes the draft and the game begins.
	sendAction(ctx, t, connB, draftPick("bob", "MAGE", "ARCHER", "ASSASSIN"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMsg(ctx, t, conn)
		assert.Equal(types.MsgStateUpdate, msg.Type)

		var sp types.StateUpdatePayload
		decodePayload(t, msg, &sp)
		assert.Equal("IN_PROGRESS", sp.State.Phase)
		assert.Equal("alice", sp.CurrentPlayerID)
		if assert.NotNil(sp.State.Game) {
			assert.Len(sp.State.Game.Units, 6)
		}
	}

	// The first player ends her turn; it passes to bob.
	sendAction(ctx, t, connA, endTurn("alice"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		var sp types.StateUpdatePayload
		msg := readMsg(ctx, t, conn)
		assert.Equal(types.MsgStateUpdate, msg.Type)
		decodePayload(t, msg, &sp)
		assert.Equal("bob", sp.CurrentPlayerID)
	}

	// Acting out of turn is rejected and answered with a resync.
	sendAction(ctx, t, connA, endTurn("alice"))
	perr := readErr(ctx, t, connA)
	assert.Equal(types.CodeIllegalAction, perr.Code)

	resync := readMsg(ctx, t, connA)
	assert.Equal(types.MsgStateUpdate, resync.Type)

	var sp types.StateUpdatePayload
	decodePayload(t, resync, &sp)
	assert.Equal("bob", sp.CurrentPlayerID)
}

func TestHeroKillEndsMatch(t *testing.T) {
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, url, cleanup := setupTestServer()
	defer cleanup()

	connA, connB := joinBoth(ctx, t, url, "m1")
	defer connA.Close(websocket.StatusNormalClosure, "")
	defer connB.Close(websocket.StatusNormalClosure, "")

	sendAction(ctx, t, connA, draftPick("alice", "ROGUE", "ASSASSIN", "TANK"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		readMsg(ctx, t, conn) // draft state_update
	}
	sendAction(ctx, t, connB, draftPick("bob", "WARRIOR", "TANK", "TANK"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMsg(ctx, t, conn)
		assert.Equal(types.MsgStateUpdate, msg.Type)
	}

	// Alice's assassin walks across the board and takes down bob's hero
	// without ever yielding the turn: moves and attacks both keep it.
	opening := []types.ActionPayload{
		boardAction("alice", "MOVE", 0, 3),
		boardAction("alice", "MOVE", 2, 3),
		attack("alice", 2, 4, "p2_hero"),
		attack("alice", 2, 4, "p2_hero"),
	}
	for _, action := range opening {
		sendAction(ctx, t, connA, action)
		for _, conn := range []*websocket.Conn{connA, connB} {
			msg := readMsg(ctx, t, conn)
			assert.Equal(types.MsgStateUpdate, msg.Type)
		}
	}

	// The killing blow broadcasts game_over in place of a state_update.
	sendAction(ctx, t, connA, attack("alice", 2, 4, "p2_hero"))
	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMsg(ctx, t, conn)
		assert.Equal(types.MsgGameOver, msg.Type)

		var gp types.GameOverPayload
		decodePayload(t, msg, &gp)
		assert.Equal("alice", gp.Winner)
		assert.Equal("GAME_OVER", gp.State.Phase)
		assert.Equal("alice", gp.State.Winner)
	}
}
