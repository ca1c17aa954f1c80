package domain

import (
	"time"

	"github.com/voidloop/connectionhub/internal/ids"
)

// PlayerStatus is a player's connectivity snapshot within a game.
type PlayerStatus string

const (
	PlayerConnected    PlayerStatus = "connected"
	PlayerDisconnected PlayerStatus = "disconnected"
)

// ReconnectBudget is the initial time_left granted to every player when
// a game starts, and the default disqualification deadline on first
// disconnect.
const ReconnectBudget = 40 * time.Second

// PlayerState is one player's connectivity epoch within a game. Id
// rotates on every status toggle.
type PlayerState struct {
	ID       ids.PlayerStateId
	Status   PlayerStatus
	TimeLeft time.Duration
}

func newPlayerState() *PlayerState {
	return &PlayerState{
		ID:       ids.NewPlayerStateId(),
		Status:   PlayerConnected,
		TimeLeft: ReconnectBudget,
	}
}
