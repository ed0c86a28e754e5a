package match

import (
	"github.com/tactics-arena/arena-backend/internal/types"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

func (m *Match) snapshot() *types.Snapshot {
	players := make([]types.PlayerInfo, 0, len(m.players))
	for _, p := range m.players {
		info := types.PlayerInfo{
			PlayerID:  string(p.id),
			Connected: p.outbox != nil,
			Ready:     p.picked,
		}
		if p.picked {
			info.HeroClass = string(p.pick.Hero)
			info.Minions = []string{string(p.pick.Minions[0]), string(p.pick.Minions[1])}
		}
		players = append(players, info)
	}

	snap := &types.Snapshot{
		MatchID: m.id,
		Phase:   string(m.phase),
		Players: players,
	}
	if m.phase == PhaseInProgress || m.phase == PhaseGameOver {
		game := m.game
		snap.Game = &game
		snap.Winner = string(m.game.Winner)
		if !m.game.GameOver {
			snap.CurrentPlayerID = string(m.game.Current)
		}
	}
	return snap
}

func (m *Match) broadcastState() {
	snap := m.snapshot()
	m.broadcast(types.ServerMessage{
		Type: types.MsgStateUpdate,
		Payload: types.StateUpdatePayload{
			State:           snap,
			CurrentPlayerID: snap.CurrentPlayerID,
			Timer:           m.timerInfo(),
		},
	})
}

// sendTo delivers msg to a single player, dropping them if their outbox
// is full.
func (m *Match) sendTo(p *player, msg types.ServerMessage) {
	if p.outbox == nil {
		return
	}
	select {
	case p.outbox <- msg:
	default:
		close(p.outbox)
		p.outbox = nil
		p.connID = ""
		logger.Warn("dropped slow client", "match", m.id, "player", p.id)
	}
}

// broadcast fans msg out to every connected player. A player whose outbox
// is full is dropped rather than allowed to stall the actor; the write
// pump notices the closed channel and tears the socket down.
func (m *Match) broadcast(msg types.ServerMessage) {
	var dropped []string
	for _, p := range m.players {
		if p.outbox == nil {
			continue
		}
		select {
		case p.outbox <- msg:
		default:
			close(p.outbox)
			p.outbox = nil
			p.connID = ""
			dropped = append(dropped, string(p.id))
		}
	}

	for _, id := range dropped {
		logger.Warn("dropped slow client", "match", m.id, "player", id)
		m.broadcast(types.ServerMessage{
			Type:    types.MsgPlayerDisconnected,
			Payload: types.PlayerDisconnectedPayload{PlayerID: id},
		})
	}
}
