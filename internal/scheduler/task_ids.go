package scheduler

import (
	"fmt"

	"github.com/voidloop/connectionhub/internal/ids"
)

// Task kind discriminators, also used as the Kind field stored
// alongside each task's payload so the executor can dispatch on it.
const (
	KindRemoveFromLobby       = "remove_from_lobby"
	KindDisconnectFromGame    = "disconnect_from_game"
	KindTryToDisqualifyPlayer = "try_to_disqualify_player"
)

// RemoveFromLobbyTaskID is deterministic per (lobby, user): rescheduling
// (a heartbeat) overwrites the previous deadline; leaving or being
// kicked unschedules by this same id.
func RemoveFromLobbyTaskID(lobbyID ids.LobbyId, userID ids.UserId) string {
	return fmt.Sprintf("%s:%s:%s", KindRemoveFromLobby, lobbyID.Hex(), userID.Hex())
}

// DisconnectFromGameTaskID is deterministic per (game, user).
func DisconnectFromGameTaskID(gameID ids.GameId, userID ids.UserId) string {
	return fmt.Sprintf("%s:%s:%s", KindDisconnectFromGame, gameID.Hex(), userID.Hex())
}

// TryToDisqualifyPlayerTaskID is tied to a specific PlayerStateId, not
// just (game, user): it must NOT survive a reconnect. ReconnectToGame
// unschedules the task under the previous PlayerStateId before rotating
// it, and a task under an old id that still fires is a no-op (stale-fire
// check in the domain layer).
func TryToDisqualifyPlayerTaskID(playerStateID ids.PlayerStateId) string {
	return fmt.Sprintf("%s:%s", KindTryToDisqualifyPlayer, playerStateID.Hex())
}
