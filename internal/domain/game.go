package domain

import (
	"time"

	"github.com/voidloop/connectionhub/internal/ids"
)

// Game is an active match. PlayerOrder preserves the roster order the
// lobby had at creation time.
type Game struct {
	ID          ids.GameId
	Kind        RuleSet
	PlayerOrder []ids.UserId
	Players     map[ids.UserId]*PlayerState
	CreatedAt   time.Time
}

// HasPlayer reports whether id is currently a player in the game.
func (g *Game) HasPlayer(id ids.UserId) bool {
	_, ok := g.Players[id]
	return ok
}

func (g *Game) popPlayer(id ids.UserId) {
	delete(g.Players, id)
	g.PlayerOrder = removeUserId(g.PlayerOrder, id)
}

// BelowMinPlayers reports whether the current roster is too small to
// continue the game.
func (g *Game) BelowMinPlayers() bool {
	return len(g.Players) < g.Kind.MinPlayers()
}
