// Package events defines the domain events the connection hub publishes
// to the durable bus, and the publisher contract command processors
// depend on.
package events

import (
	"context"
	"time"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
)

// Event is any domain event; Subject is the egress bus subject it's
// published under (§6.2).
type Event interface {
	Subject() string
}

// Publisher is the durable-bus egress contract. Implemented by
// internal/bus.
type Publisher interface {
	Publish(ctx context.Context, operationID ids.OperationId, event Event) error
}

type LobbyCreated struct {
	LobbyID ids.LobbyId
	Name    string
	AdminID ids.UserId
	RuleSet domain.RuleSet
}

func (LobbyCreated) Subject() string { return "connection_hub.lobby.created" }

type UserJoinedLobby struct {
	LobbyID ids.LobbyId
	UserID  ids.UserId
}

func (UserJoinedLobby) Subject() string { return "connection_hub.lobby.user_joined" }

// UserLeftLobby is published when a user leaves voluntarily (LeaveLobby).
type UserLeftLobby struct {
	LobbyID    ids.LobbyId
	UserID     ids.UserId
	NewAdminID *ids.UserId
}

func (UserLeftLobby) Subject() string { return "connection_hub.lobby.user_left" }

// UserRemovedFromLobby is published when a stale-presence task removes
// a user (RemoveFromLobby, internal).
type UserRemovedFromLobby struct {
	LobbyID    ids.LobbyId
	UserID     ids.UserId
	NewAdminID *ids.UserId
}

func (UserRemovedFromLobby) Subject() string { return "connection_hub.lobby.user_removed" }

// UserKickedFromLobby is published when an admin kicks a user.
type UserKickedFromLobby struct {
	LobbyID    ids.LobbyId
	UserID     ids.UserId
	NewAdminID *ids.UserId
}

func (UserKickedFromLobby) Subject() string { return "connection_hub.lobby.user_kicked" }

type ConnectFourGameCreated struct {
	GameID            ids.GameId
	LobbyID           ids.LobbyId
	FirstPlayerID     ids.UserId
	SecondPlayerID    ids.UserId
	TimeForEachPlayer time.Duration
	CreatedAt         time.Time
}

func (ConnectFourGameCreated) Subject() string {
	return "connection_hub.connect_four.game.created"
}

type PlayerDisconnected struct {
	GameID   ids.GameId
	PlayerID ids.UserId
}

func (PlayerDisconnected) Subject() string {
	return "connection_hub.connect_four.game.player_disconnected"
}

type PlayerReconnected struct {
	GameID   ids.GameId
	PlayerID ids.UserId
}

func (PlayerReconnected) Subject() string {
	return "connection_hub.connect_four.game.player_reconnected"
}

type PlayerDisqualified struct {
	GameID   ids.GameId
	PlayerID ids.UserId
}

func (PlayerDisqualified) Subject() string {
	return "connection_hub.connect_four.game.player_disqualified"
}
