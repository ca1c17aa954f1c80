package realtime

import (
	"fmt"

	"github.com/voidloop/connectionhub/internal/ids"
)

// LobbyBrowserChannel is the global lobby-discovery channel.
const LobbyBrowserChannel = "lobby_browser"

// UserChannel is the private channel for one user.
func UserChannel(userID ids.UserId) string { return fmt.Sprintf("#%s", userID.Hex()) }

// LobbyChannel is the channel every member of a lobby subscribes to.
func LobbyChannel(lobbyID ids.LobbyId) string { return fmt.Sprintf("lobbies:%s", lobbyID.Hex()) }

// GameChannel is the channel every player of a game subscribes to.
func GameChannel(gameID ids.GameId) string { return fmt.Sprintf("games:%s", gameID.Hex()) }
