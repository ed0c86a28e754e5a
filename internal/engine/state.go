package engine

// PlayerID identifies one of the two players in a match. Values are
// caller-supplied and opaque to the engine.
type PlayerID string

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type HeroClass string

const (
	HeroWarrior  HeroClass = "WARRIOR"
	HeroMage     HeroClass = "MAGE"
	HeroRogue    HeroClass = "ROGUE"
	HeroHuntress HeroClass = "HUNTRESS"
	HeroDuelist  HeroClass = "DUELIST"
	HeroCleric   HeroClass = "CLERIC"
)

type MinionType string

const (
	MinionTank     MinionType = "TANK"
	MinionArcher   MinionType = "ARCHER"
	MinionAssassin MinionType = "ASSASSIN"
)

type UnitKind string

const (
	KindHero   UnitKind = "HERO"
	KindMinion UnitKind = "MINION"
)

type Unit struct {
	ID          string     `json:"id"`
	Owner       PlayerID   `json:"owner"`
	Kind        UnitKind   `json:"kind"`
	Class       HeroClass  `json:"class,omitempty"`
	Minion      MinionType `json:"minion,omitempty"`
	HP          int        `json:"hp"`
	Attack      int        `json:"attack"`
	MoveRange   int        `json:"moveRange"`
	AttackRange int        `json:"attackRange"`
	Position    Position   `json:"position"`
	Alive       bool       `json:"alive"`
}

// State is the complete board state of a running game. Values are cheap to
// copy; Apply never mutates its input (units are cloned before any change)
// so callers can keep old snapshots around.
type State struct {
	Board    Board       `json:"board"`
	Units    []Unit      `json:"units"`
	Players  [2]PlayerID `json:"players"` // seat order; seat 0 moves first
	Current  PlayerID    `json:"currentPlayer"`
	GameOver bool        `json:"gameOver"`
	Winner   PlayerID    `json:"winner,omitempty"`
}

func (s State) UnitByID(id string) (Unit, bool) {
	for _, u := range s.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// Opponent returns the player sitting across from p, or "" if p is not
// seated in this game.
func (s State) Opponent(p PlayerID) PlayerID {
	switch p {
	case s.Players[0]:
		return s.Players[1]
	case s.Players[1]:
		return s.Players[0]
	}
	return ""
}

func cloneUnits(units []Unit) []Unit {
	out := make([]Unit, len(units))
	copy(out, units)
	return out
}

func manhattan(a, b Position) int {
	dx := b.X - a.X
	if dx < 0 {
		dx = -dx
	}
	dy := b.Y - a.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// isOrthogonal reports whether b is reachable from a along exactly one axis.
// Diagonals and zero-length moves both fail.
func isOrthogonal(a, b Position) bool {
	return (a.X == b.X) != (a.Y == b.Y)
}

func (b Board) contains(p Position) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

func tileOccupied(units []Unit, p Position) bool {
	for _, u := range units {
		if u.Alive && u.Position == p {
			return true
		}
	}
	return false
}

// canMoveTo reports whether u can legally step to target: orthogonal and
// within its move range.
func canMoveTo(u Unit, target Position) bool {
	if !isOrthogonal(u.Position, target) {
		return false
	}
	d := manhattan(u.Position, target)
	return d >= 1 && d <= u.MoveRange
}

// canAttackFrom reports whether u could hit target while standing at from.
func canAttackFrom(u Unit, from, target Position) bool {
	if !isOrthogonal(from, target) {
		return false
	}
	d := manhattan(from, target)
	return d >= 1 && d <= u.AttackRange
}
