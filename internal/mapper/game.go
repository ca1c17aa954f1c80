package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/voidloop/connectionhub/internal/domain"
	"github.com/voidloop/connectionhub/internal/ids"
	"github.com/voidloop/connectionhub/internal/kv"
)

const gameKeyPrefix = "games:id:"

type playerStateEntry struct {
	UserID   string  `json:"user_id"`
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	TimeLeft float64 `json:"time_left"`
}

type gameRecord struct {
	ID        string             `json:"id"`
	Kind      json.RawMessage    `json:"kind"`
	Players   []playerStateEntry `json:"players"`
	CreatedAt time.Time          `json:"created_at"`
}

// GameMapper persists and loads Game aggregates.
type GameMapper struct {
	store *kv.Store
	ttl   time.Duration
}

// NewGameMapper builds a mapper whose saved records default to ttl (the
// spec's 1-day game default).
func NewGameMapper(store *kv.Store, ttl time.Duration) *GameMapper {
	return &GameMapper{store: store, ttl: ttl}
}

func gameKey(gameID ids.GameId, playerIDs []ids.UserId) string {
	return fmt.Sprintf("%s%s:player_ids:%s", gameKeyPrefix, gameID.Hex(), joinPlayerHex(playerIDs))
}

func gameIDPattern(gameID ids.GameId) string {
	return fmt.Sprintf("%s%s:player_ids:*", gameKeyPrefix, gameID.Hex())
}

func gamePlayerPattern(userID ids.UserId) string {
	return fmt.Sprintf("%s*:player_ids:*%s*", gameKeyPrefix, userID.Hex())
}

func joinPlayerHex(userIDs []ids.UserId) string {
	hexes := make([]string, len(userIDs))
	for i, u := range userIDs {
		hexes[i] = u.Hex()
	}
	sort.Strings(hexes)
	return strings.Join(hexes, ":")
}

// ByID loads the game with the given id, or (nil, nil) if it does not
// exist.
func (m *GameMapper) ByID(ctx context.Context, gameID ids.GameId) (*domain.Game, error) {
	keys, err := m.store.Scan(ctx, gameIDPattern(gameID))
	if err != nil {
		return nil, fmt.Errorf("mapper: scan game by id %s: %w", gameID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return m.load(ctx, keys[0])
}

// ByPlayerID finds the game containing userID, or (nil, nil) if the
// user is in no game.
func (m *GameMapper) ByPlayerID(ctx context.Context, userID ids.UserId) (*domain.Game, error) {
	keys, err := m.store.Scan(ctx, gamePlayerPattern(userID))
	if err != nil {
		return nil, fmt.Errorf("mapper: scan game by player %s: %w", userID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return m.load(ctx, keys[0])
}

func (m *GameMapper) load(ctx context.Context, key string) (*domain.Game, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("mapper: load game %q: %w", key, err)
	}
	var rec gameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("mapper: decode game %q: %w", key, err)
	}
	return decodeGame(rec)
}

func decodeGame(rec gameRecord) (*domain.Game, error) {
	gameID, err := ids.ParseGameId(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mapper: game id: %w", err)
	}
	kind, err := domain.UnmarshalRuleSet(rec.Kind)
	if err != nil {
		return nil, fmt.Errorf("mapper: game kind: %w", err)
	}
	order := make([]ids.UserId, len(rec.Players))
	players := make(map[ids.UserId]*domain.PlayerState, len(rec.Players))
	for i, p := range rec.Players {
		uid, err := ids.ParseUserId(p.UserID)
		if err != nil {
			return nil, fmt.Errorf("mapper: game player user id: %w", err)
		}
		psID, err := ids.ParsePlayerStateId(p.ID)
		if err != nil {
			return nil, fmt.Errorf("mapper: game player state id: %w", err)
		}
		order[i] = uid
		players[uid] = &domain.PlayerState{
			ID:       psID,
			Status:   domain.PlayerStatus(p.Status),
			TimeLeft: time.Duration(p.TimeLeft * float64(time.Second)),
		}
	}
	return &domain.Game{
		ID:          gameID,
		Kind:        kind,
		PlayerOrder: order,
		Players:     players,
		CreatedAt:   rec.CreatedAt,
	}, nil
}

func encodeGame(game *domain.Game) (gameRecord, error) {
	kindJSON, err := domain.MarshalRuleSet(game.Kind)
	if err != nil {
		return gameRecord{}, fmt.Errorf("mapper: encode game kind: %w", err)
	}
	players := make([]playerStateEntry, len(game.PlayerOrder))
	for i, uid := range game.PlayerOrder {
		ps := game.Players[uid]
		players[i] = playerStateEntry{
			UserID:   uid.String(),
			ID:       ps.ID.String(),
			Status:   string(ps.Status),
			TimeLeft: ps.TimeLeft.Seconds(),
		}
	}
	return gameRecord{
		ID:        game.ID.String(),
		Kind:      kindJSON,
		Players:   players,
		CreatedAt: game.CreatedAt,
	}, nil
}

// Save writes a brand-new game record into pipe.
func (m *GameMapper) Save(ctx context.Context, pipe *kv.Pipeline, game *domain.Game) error {
	rec, err := encodeGame(game)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mapper: marshal game: %w", err)
	}
	pipe.Set(ctx, gameKey(game.ID, game.PlayerOrder), b, m.ttl)
	return nil
}

// Update rewrites game's record: delete the old key (found by
// id-prefix scan), then write the new key, in the same pipeline.
func (m *GameMapper) Update(ctx context.Context, pipe *kv.Pipeline, game *domain.Game) error {
	oldKeys, err := m.store.Scan(ctx, gameIDPattern(game.ID))
	if err != nil {
		return fmt.Errorf("mapper: update game %s: scan old key: %w", game.ID, err)
	}
	pipe.Delete(ctx, oldKeys...)
	return m.Save(ctx, pipe, game)
}

// Delete removes every key recorded for gameID.
func (m *GameMapper) Delete(ctx context.Context, pipe *kv.Pipeline, gameID ids.GameId) error {
	keys, err := m.store.Scan(ctx, gameIDPattern(gameID))
	if err != nil {
		return fmt.Errorf("mapper: delete game %s: scan: %w", gameID, err)
	}
	pipe.Delete(ctx, keys...)
	return nil
}
