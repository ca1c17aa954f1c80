package domain

import (
	"time"

	"github.com/voidloop/connectionhub/internal/ids"
)

// CreateLobby builds a new lobby with the creator as its sole admin and
// an empty transfer queue. No I/O, no validation beyond what the
// rule-set type itself encodes; callers validate name/password/rule-set
// bounds before calling this.
func CreateLobby(name string, currentUserID ids.UserId, ruleSet RuleSet, password *string) *Lobby {
	lobby := &Lobby{
		ID:                 ids.NewLobbyId(),
		Name:               name,
		UserOrder:          nil,
		Roles:              make(map[ids.UserId]Role),
		AdminTransferQueue: nil,
		Password:           password,
		RuleSet:            ruleSet,
	}
	lobby.addUser(currentUserID, RoleAdmin)
	return lobby
}

// JoinLobby adds currentUserID as a regular member, enforcing the
// capacity and password preconditions.
func JoinLobby(lobby *Lobby, currentUserID ids.UserId, password *string) error {
	if len(lobby.UserOrder) >= lobby.RuleSet.MaxPlayers() {
		return ErrUserLimitReached
	}
	if lobby.Password != nil && *lobby.Password != "" {
		if password == nil || *password == "" {
			return ErrPasswordRequired
		}
		if *password != *lobby.Password {
			return ErrIncorrectPassword
		}
	}
	lobby.addUser(currentUserID, RoleMember)
	lobby.AdminTransferQueue = append(lobby.AdminTransferQueue, currentUserID)
	return nil
}

// RemoveFromLobby pops a user from the lobby (whether they left
// voluntarily or were forced out by a stale-presence task), transferring
// the admin role if needed. Returns whether the lobby is now empty and,
// if the admin role was transferred, the new admin's id.
func RemoveFromLobby(lobby *Lobby, userID ids.UserId) (emptyNow bool, newAdmin *ids.UserId) {
	role := lobby.Roles[userID]
	lobby.popUser(userID)

	if lobby.Empty() {
		return true, nil
	}

	if role == RoleAdmin {
		next := lobby.AdminTransferQueue[0]
		lobby.AdminTransferQueue = lobby.AdminTransferQueue[1:]
		lobby.Roles[next] = RoleAdmin
		return false, &next
	}

	lobby.popFromTransferQueue(userID)
	return false, nil
}

// KickFromLobby removes target from the lobby on caller's behalf,
// requiring caller to be the admin and target to not be caller.
func KickFromLobby(lobby *Lobby, target, caller ids.UserId) error {
	role, ok := lobby.RoleOf(caller)
	if !ok {
		return ErrCurrentUserNotInLobby
	}
	if role != RoleAdmin {
		return ErrUserIsNotAdmin
	}
	if target == caller {
		return ErrUserIsTryingKickHimself
	}
	if !lobby.HasUser(target) {
		return ErrUserNotInLobby
	}
	lobby.popUser(target)
	lobby.popFromTransferQueue(target)
	return nil
}

// CreateGame promotes a lobby to a game. Caller must be admin. Every
// lobby user becomes a fresh, connected player with a full reconnect
// budget, in the lobby's roster order.
func CreateGame(lobby *Lobby, caller ids.UserId) (*Game, error) {
	role, ok := lobby.RoleOf(caller)
	if !ok {
		return nil, ErrCurrentUserNotInLobby
	}
	if role != RoleAdmin {
		return nil, ErrUserIsNotAdmin
	}

	players := make(map[ids.UserId]*PlayerState, len(lobby.UserOrder))
	order := make([]ids.UserId, len(lobby.UserOrder))
	copy(order, lobby.UserOrder)
	for _, uid := range lobby.UserOrder {
		players[uid] = newPlayerState()
	}

	return &Game{
		ID:          ids.NewGameId(),
		Kind:        lobby.RuleSet,
		PlayerOrder: order,
		Players:     players,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Disconnect marks a player disconnected and rotates its PlayerStateId,
// invalidating any disqualify timer tied to the previous id.
func Disconnect(game *Game, userID ids.UserId) error {
	ps, ok := game.Players[userID]
	if !ok {
		return ErrCurrentUserNotInGame
	}
	if ps.Status == PlayerDisconnected {
		return ErrUserIsDisconnectedFromGame
	}
	ps.ID = ids.NewPlayerStateId()
	ps.Status = PlayerDisconnected
	return nil
}

// Reconnect marks a player connected and rotates its PlayerStateId.
func Reconnect(game *Game, userID ids.UserId) error {
	ps, ok := game.Players[userID]
	if !ok {
		return ErrCurrentUserNotInGame
	}
	if ps.Status == PlayerConnected {
		return ErrUserIsConnectedToGame
	}
	ps.ID = ids.NewPlayerStateId()
	ps.Status = PlayerConnected
	return nil
}

// TryToDisqualifyPlayer removes userID from the game iff its current
// PlayerStateId still matches expectedStateID — the stale-fire check
// that makes a reconnect race safe. Returns whether the player was
// disqualified and whether the game ended as a result.
func TryToDisqualifyPlayer(game *Game, userID ids.UserId, expectedStateID ids.PlayerStateId) (disqualified, gameEnded bool) {
	ps, ok := game.Players[userID]
	if !ok || ps.ID != expectedStateID {
		return false, false
	}
	game.popPlayer(userID)
	if game.BelowMinPlayers() {
		return true, true
	}
	return true, false
}
