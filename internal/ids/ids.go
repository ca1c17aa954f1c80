// Package ids defines the identifier types the connection hub threads
// through every aggregate, event, and scheduled task. Time-ordered ids
// (Lobby, Game, User, Operation) use UUIDv7 so that lexical and
// creation order coincide; PlayerStateId is a random UUIDv4, rotated on
// every connect/disconnect toggle so a stale id can never be mistaken
// for a live one.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// LobbyId identifies a lobby for its entire lifetime.
type LobbyId uuid.UUID

// GameId identifies a game for its entire lifetime.
type GameId uuid.UUID

// UserId identifies a person across lobbies and games.
type UserId uuid.UUID

// PlayerStateId identifies one connectivity "epoch" of a player within a
// game. It is regenerated on every status toggle so that a disqualify
// timer scoped to a previous epoch can detect it no longer applies.
type PlayerStateId uuid.UUID

// OperationId correlates one user-visible request across every event,
// task, and log line it produces.
type OperationId uuid.UUID

// NewLobbyId mints a fresh time-ordered lobby id.
func NewLobbyId() LobbyId { return LobbyId(mustV7()) }

// NewGameId mints a fresh time-ordered game id.
func NewGameId() GameId { return GameId(mustV7()) }

// NewUserId mints a fresh time-ordered user id. Exposed mainly for tests;
// in production user ids are asserted by the ingress, not minted here.
func NewUserId() UserId { return UserId(mustV7()) }

// NewPlayerStateId mints a fresh random player-state id.
func NewPlayerStateId() PlayerStateId { return PlayerStateId(uuid.New()) }

// NewOperationId mints a fresh time-ordered operation id.
func NewOperationId() OperationId { return OperationId(mustV7()) }

func mustV7() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the OS entropy source fails, which is not a
		// condition this process can recover from.
		panic(fmt.Errorf("ids: generate uuidv7: %w", err))
	}
	return id
}

func (id LobbyId) String() string        { return uuid.UUID(id).String() }
func (id GameId) String() string         { return uuid.UUID(id).String() }
func (id UserId) String() string         { return uuid.UUID(id).String() }
func (id PlayerStateId) String() string  { return uuid.UUID(id).String() }
func (id OperationId) String() string    { return uuid.UUID(id).String() }

// Hex returns the 32-character hex encoding (no dashes) used in key
// schemas and deterministic task ids.
func (id LobbyId) Hex() string       { return hex(uuid.UUID(id)) }
func (id GameId) Hex() string        { return hex(uuid.UUID(id)) }
func (id UserId) Hex() string        { return hex(uuid.UUID(id)) }
func (id PlayerStateId) Hex() string { return hex(uuid.UUID(id)) }

func hex(id uuid.UUID) string {
	return fmt.Sprintf("%x", id[:])
}

func (id LobbyId) MarshalJSON() ([]byte, error) { return uuid.UUID(id).MarshalJSON() }
func (id *LobbyId) UnmarshalJSON(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalJSON(b)
}

func (id GameId) MarshalJSON() ([]byte, error) { return uuid.UUID(id).MarshalJSON() }
func (id *GameId) UnmarshalJSON(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalJSON(b)
}

func (id UserId) MarshalJSON() ([]byte, error) { return uuid.UUID(id).MarshalJSON() }
func (id *UserId) UnmarshalJSON(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalJSON(b)
}

func (id PlayerStateId) MarshalJSON() ([]byte, error) { return uuid.UUID(id).MarshalJSON() }
func (id *PlayerStateId) UnmarshalJSON(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalJSON(b)
}

func (id OperationId) MarshalJSON() ([]byte, error) { return uuid.UUID(id).MarshalJSON() }
func (id *OperationId) UnmarshalJSON(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalJSON(b)
}

// ParseUserId parses a canonical or hex-encoded user id.
func ParseUserId(s string) (UserId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserId{}, fmt.Errorf("ids: parse user id %q: %w", s, err)
	}
	return UserId(id), nil
}

// ParseLobbyId parses a canonical or hex-encoded lobby id.
func ParseLobbyId(s string) (LobbyId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return LobbyId{}, fmt.Errorf("ids: parse lobby id %q: %w", s, err)
	}
	return LobbyId(id), nil
}

// ParseGameId parses a canonical or hex-encoded game id.
func ParseGameId(s string) (GameId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return GameId{}, fmt.Errorf("ids: parse game id %q: %w", s, err)
	}
	return GameId(id), nil
}

// ParseOperationId parses a canonical operation id.
func ParseOperationId(s string) (OperationId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return OperationId{}, fmt.Errorf("ids: parse operation id %q: %w", s, err)
	}
	return OperationId(id), nil
}

// ParsePlayerStateId parses a canonical player-state id.
func ParsePlayerStateId(s string) (PlayerStateId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return PlayerStateId{}, fmt.Errorf("ids: parse player state id %q: %w", s, err)
	}
	return PlayerStateId(id), nil
}
