package engine

import "fmt"

const BoardWidth = 5
const BoardHeight = 5

type baseStats struct {
	hp, attack, moveRange, attackRange int
}

var heroBase = baseStats{hp: 5, attack: 1, moveRange: 1, attackRange: 1}

var minionBase = map[MinionType]baseStats{
	MinionTank:     {hp: 5, attack: 1, moveRange: 1, attackRange: 1},
	MinionArcher:   {hp: 3, attack: 1, moveRange: 1, attackRange: 3},
	MinionAssassin: {hp: 2, attack: 2, moveRange: 4, attackRange: 1},
}

// DraftPick is one player's completed draft: a hero class plus two minions.
// Picking the same minion type twice is allowed.
type DraftPick struct {
	Hero    HeroClass
	Minions [2]MinionType
}

// Spawn layout per seat: hero mid-row on the home edge, minions in the
// home corners.
var spawns = [2]struct {
	hero    Position
	minions [2]Position
}{
	{hero: Position{X: 2, Y: 0}, minions: [2]Position{{X: 0, Y: 0}, {X: 4, Y: 0}}},
	{hero: Position{X: 2, Y: 4}, minions: [2]Position{{X: 0, Y: 4}, {X: 4, Y: 4}}},
}

// NewGame builds the opening state from both players' draft picks.
// Seat 0 takes the first turn.
func NewGame(players [2]PlayerID, picks [2]DraftPick) State {
	units := make([]Unit, 0, 6)
	for seat := range players {
		prefix := fmt.Sprintf("p%d", seat+1)
		units = append(units, Unit{
			ID:          prefix + "_hero",
			Owner:       players[seat],
			Kind:        KindHero,
			Class:       picks[seat].Hero,
			HP:          heroBase.hp,
			Attack:      heroBase.attack,
			MoveRange:   heroBase.moveRange,
			AttackRange: heroBase.attackRange,
			Position:    spawns[seat].hero,
			Alive:       true,
		})
		for m, mt := range picks[seat].Minions {
			base, ok := minionBase[mt]
			if !ok {
				base = minionBase[MinionTank]
			}
			units = append(units, Unit{
				ID:          fmt.Sprintf("%s_minion_%d", prefix, m+1),
				Owner:       players[seat],
				Kind:        KindMinion,
				Minion:      mt,
				HP:          base.hp,
				Attack:      base.attack,
				MoveRange:   base.moveRange,
				AttackRange: base.attackRange,
				Position:    spawns[seat].minions[m],
				Alive:       true,
			})
		}
	}

	return State{
		Board:   Board{Width: BoardWidth, Height: BoardHeight},
		Units:   units,
		Players: players,
		Current: players[0],
	}
}

func ParseHeroClass(s string) (HeroClass, bool) {
	switch c := HeroClass(s); c {
	case HeroWarrior, HeroMage, HeroRogue, HeroHuntress, HeroDuelist, HeroCleric:
		return c, true
	}
	return "", false
}

func ParseMinionType(s string) (MinionType, bool) {
	switch m := MinionType(s); m {
	case MinionTank, MinionArcher, MinionAssassin:
		return m, true
	}
	return "", false
}

func ParseActionType(s string) (ActionType, bool) {
	switch a := ActionType(s); a {
	case ActionMove, ActionAttack, ActionMoveAndAttack, ActionEndTurn:
		return a, true
	}
	return "", false
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
