package engine

import "errors"

var ErrGameOver = errors.New("game is already over")
var ErrWrongTurn = errors.New("not your turn")
var ErrUnsupportedAction = errors.New("unsupported action")
var ErrMissingTarget = errors.New("target position required")
var ErrMissingTargetUnit = errors.New("target unit required")
var ErrOutOfBounds = errors.New("target position out of bounds")
var ErrTileOccupied = errors.New("target position occupied")
var ErrNoMover = errors.New("no unit can reach that position")
var ErrAmbiguousMove = errors.New("ambiguous move")
var ErrNoAttacker = errors.New("no unit can attack that target")
var ErrAmbiguousAttacker = errors.New("ambiguous attacker")
var ErrTargetNotFound = errors.New("target unit not found")
var ErrTargetDead = errors.New("target unit already dead")
var ErrFriendlyFire = errors.New("cannot attack a friendly unit")
var ErrTargetMismatch = errors.New("target position does not match target unit")

type ActionType string

const (
	ActionMove          ActionType = "MOVE"
	ActionAttack        ActionType = "ATTACK"
	ActionMoveAndAttack ActionType = "MOVE_AND_ATTACK"
	ActionEndTurn       ActionType = "END_TURN"
)

// Action is one gameplay command from a player. Target is the destination
// tile for MOVE and MOVE_AND_ATTACK, and the defender's tile for ATTACK.
// The acting unit is never named explicitly: it is resolved from the target,
// and the action is rejected as ambiguous when more than one unit qualifies.
type Action struct {
	Type         ActionType
	Player       PlayerID
	Target       *Position
	TargetUnitID string
}

type EventType string

const (
	EvtUnitMoved      EventType = "UnitMoved"
	EvtUnitAttacked   EventType = "UnitAttacked"
	EvtUnitKilled     EventType = "UnitKilled"
	EvtTurnEnded      EventType = "TurnEnded"
	EvtTimeoutPenalty EventType = "TimeoutPenalty"
	EvtGameOver       EventType = "GameOver"
)

type Event struct {
	Type   EventType
	Player PlayerID
	Unit   string
	Target string
	From   Position
	To     Position
	Damage int
}

// Apply validates a against s and returns the events it produced together
// with the successor state. On any validation failure the input state is
// returned unchanged. MOVE and ATTACK leave the turn with the acting
// player; MOVE_AND_ATTACK and END_TURN pass it to the opponent.
func Apply(s State, a Action) ([]Event, State, error) {
	if s.GameOver {
		return nil, s, ErrGameOver
	}
	if a.Player != s.Current {
		return nil, s, ErrWrongTurn
	}

	switch a.Type {
	case ActionMove:
		mover, err := resolveMover(s, a.Player, a.Target)
		if err != nil {
			return nil, s, err
		}
		return applyMove(s, mover, *a.Target)

	case ActionAttack:
		defender, err := resolveDefender(s, a)
		if err != nil {
			return nil, s, err
		}
		attacker, err := resolveAttacker(s, a.Player, defender.Position)
		if err != nil {
			return nil, s, err
		}
		return applyAttack(s, attacker, defender, false)

	case ActionMoveAndAttack:
		defender, err := resolveDefender(s, a)
		if err != nil {
			return nil, s, err
		}
		actor, err := resolveComboActor(s, a.Player, *a.Target, defender.Position)
		if err != nil {
			return nil, s, err
		}
		events, mid, err := applyMove(s, actor, *a.Target)
		if err != nil {
			return nil, s, err
		}
		moved, _ := mid.UnitByID(actor.ID)
		more, next, err := applyAttack(mid, moved, defender, true)
		if err != nil {
			return nil, s, err
		}
		return append(events, more...), next, nil

	case ActionEndTurn:
		return endTurn(s, a.Player)

	default:
		return nil, s, ErrUnsupportedAction
	}
}

// ApplyTimeout is the automatic action taken when the acting player lets
// the turn clock run out: their hero takes one point of damage and the
// turn passes. The penalty alone can decide the game.
func ApplyTimeout(s State) ([]Event, State, error) {
	if s.GameOver {
		return nil, s, ErrGameOver
	}

	events := []Event{}
	newState := s
	newState.Units = cloneUnits(s.Units)

	if hero, i := livingHero(newState.Units, s.Current); i >= 0 {
		newState.Units[i].HP--
		events = append(events, Event{
			Type:   EvtTimeoutPenalty,
			Player: s.Current,
			Unit:   hero.ID,
			Damage: 1,
		})
		if newState.Units[i].HP <= 0 {
			newState.Units[i].HP = 0
			newState.Units[i].Alive = false
			events = append(events, Event{Type: EvtUnitKilled, Unit: hero.ID})
		}
	}

	if over, winner := checkGameOver(newState.Units, newState.Players); over {
		newState.GameOver = true
		newState.Winner = winner
		events = append(events, Event{Type: EvtGameOver, Player: winner})
		return events, newState, nil
	}

	newState.Current = s.Opponent(s.Current)
	events = append(events, Event{Type: EvtTurnEnded, Player: s.Current})
	return events, newState, nil
}

func applyMove(s State, mover Unit, to Position) ([]Event, State, error) {
	newState := s
	newState.Units = cloneUnits(s.Units)
	for i := range newState.Units {
		if newState.Units[i].ID == mover.ID {
			newState.Units[i].Position = to
		}
	}

	events := []Event{{
		Type:   EvtUnitMoved,
		Player: mover.Owner,
		Unit:   mover.ID,
		From:   mover.Position,
		To:     to,
	}}
	return events, newState, nil
}

func applyAttack(s State, attacker, defender Unit, switchAfter bool) ([]Event, State, error) {
	newState := s
	newState.Units = cloneUnits(s.Units)

	events := []Event{{
		Type:   EvtUnitAttacked,
		Player: attacker.Owner,
		Unit:   attacker.ID,
		Target: defender.ID,
		Damage: attacker.Attack,
	}}

	for i := range newState.Units {
		if newState.Units[i].ID != defender.ID {
			continue
		}
		newState.Units[i].HP -= attacker.Attack
		if newState.Units[i].HP <= 0 {
			newState.Units[i].HP = 0
			newState.Units[i].Alive = false
			events = append(events, Event{Type: EvtUnitKilled, Unit: defender.ID})
		}
	}

	if over, winner := checkGameOver(newState.Units, newState.Players); over {
		newState.GameOver = true
		newState.Winner = winner
		events = append(events, Event{Type: EvtGameOver, Player: winner})
		return events, newState, nil
	}

	if switchAfter {
		newState.Current = s.Opponent(attacker.Owner)
		events = append(events, Event{Type: EvtTurnEnded, Player: attacker.Owner})
	}
	return events, newState, nil
}

func endTurn(s State, player PlayerID) ([]Event, State, error) {
	newState := s
	newState.Current = s.Opponent(player)
	events := []Event{{Type: EvtTurnEnded, Player: player}}
	return events, newState, nil
}

// resolveMover finds the single living unit of player that can step to
// target. Zero candidates and multiple candidates are both errors: the
// protocol never names the acting unit, so an ambiguous order is refused
// rather than guessed at.
func resolveMover(s State, player PlayerID, target *Position) (Unit, error) {
	if target == nil {
		return Unit{}, ErrMissingTarget
	}
	if !s.Board.contains(*target) {
		return Unit{}, ErrOutOfBounds
	}
	if tileOccupied(s.Units, *target) {
		return Unit{}, ErrTileOccupied
	}

	var found Unit
	count := 0
	for _, u := range s.Units {
		if u.Alive && u.Owner == player && canMoveTo(u, *target) {
			found = u
			count++
		}
	}
	if count == 0 {
		return Unit{}, ErrNoMover
	}
	if count > 1 {
		return Unit{}, ErrAmbiguousMove
	}
	return found, nil
}

func resolveDefender(s State, a Action) (Unit, error) {
	if a.Target == nil {
		return Unit{}, ErrMissingTarget
	}
	if a.TargetUnitID == "" {
		return Unit{}, ErrMissingTargetUnit
	}
	defender, ok := s.UnitByID(a.TargetUnitID)
	if !ok {
		return Unit{}, ErrTargetNotFound
	}
	if !defender.Alive {
		return Unit{}, ErrTargetDead
	}
	if defender.Owner == a.Player {
		return Unit{}, ErrFriendlyFire
	}
	if a.Type == ActionAttack && defender.Position != *a.Target {
		return Unit{}, ErrTargetMismatch
	}
	return defender, nil
}

func resolveAttacker(s State, player PlayerID, target Position) (Unit, error) {
	var found Unit
	count := 0
	for _, u := range s.Units {
		if u.Alive && u.Owner == player && canAttackFrom(u, u.Position, target) {
			found = u
			count++
		}
	}
	if count == 0 {
		return Unit{}, ErrNoAttacker
	}
	if count > 1 {
		return Unit{}, ErrAmbiguousAttacker
	}
	return found, nil
}

// resolveComboActor finds the single unit that can both step to dest and
// strike the defender's tile from there.
func resolveComboActor(s State, player PlayerID, dest, target Position) (Unit, error) {
	if !s.Board.contains(dest) {
		return Unit{}, ErrOutOfBounds
	}
	if tileOccupied(s.Units, dest) {
		return Unit{}, ErrTileOccupied
	}

	var found Unit
	count := 0
	for _, u := range s.Units {
		if u.Alive && u.Owner == player && canMoveTo(u, dest) && canAttackFrom(u, dest, target) {
			found = u
			count++
		}
	}
	if count == 0 {
		return Unit{}, ErrNoAttacker
	}
	if count > 1 {
		return Unit{}, ErrAmbiguousAttacker
	}
	return found, nil
}

func livingHero(units []Unit, owner PlayerID) (Unit, int) {
	for i, u := range units {
		if u.Alive && u.Owner == owner && u.Kind == KindHero {
			return u, i
		}
	}
	return Unit{}, -1
}

// checkGameOver decides the victory condition. When both sides fielded a
// hero the game ends the moment one hero dies. A side without a hero
// (possible only in hand-built states) instead loses when its last unit
// falls.
func checkGameOver(units []Unit, players [2]PlayerID) (bool, PlayerID) {
	var hasHero, heroAlive, anyAlive [2]bool
	for _, u := range units {
		seat := 0
		if u.Owner == players[1] {
			seat = 1
		}
		if u.Kind == KindHero {
			hasHero[seat] = true
			if u.Alive {
				heroAlive[seat] = true
			}
		}
		if u.Alive {
			anyAlive[seat] = true
		}
	}

	if hasHero[0] && hasHero[1] {
		switch {
		case !heroAlive[0]:
			return true, players[1]
		case !heroAlive[1]:
			return true, players[0]
		}
		return false, ""
	}

	switch {
	case !anyAlive[0]:
		return true, players[1]
	case !anyAlive[1]:
		return true, players[0]
	}
	return false, ""
}
