// Package mapper translates between domain aggregates and their
// serialized KV records, and knows the key schema that makes
// "one lobby/game per user" enforceable without a secondary index: the
// user or player set is embedded directly in the key, so "find by user"
// and "find by id" are both pattern scans.
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

const lobbyKeyPrefix = "lobbies:id:"

type lobbyUserEntry struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

type lobbyRecord struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Users              []lobbyUserEntry `json:"users"`
	AdminTransferQueue []string         `json:"admin_role_transfer_queue"`
	Password           *string          `json:"password"`
	RuleSet            json.RawMessage  `json:"rule_set"`
}

// LobbyMapper persists and loads Lobby aggregates.
type LobbyMapper struct {
	store *kv.Store
	ttl   time.Duration
}

// NewLobbyMapper builds a mapper whose saved records default to ttl
// (the spec's 1-day lobby default).
func NewLobbyMapper(store *kv.Store, ttl time.Duration) *LobbyMapper {
	return &LobbyMapper{store: store, ttl: ttl}
}

func lobbyKey(lobbyID ids.LobbyId, userIDs []ids.UserId) string {
	return fmt.Sprintf("%s%s:user_ids:%s", lobbyKeyPrefix, lobbyID.Hex(), joinUserHex(userIDs))
}

func lobbyIDPattern(lobbyID ids.LobbyId) string {
	return fmt.Sprintf("%s%s:user_ids:*", lobbyKeyPrefix, lobbyID.Hex())
}

func lobbyUserPattern(userID ids.UserId) string {
	return fmt.Sprintf("%s*:user_ids:*%s*", lobbyKeyPrefix, userID.Hex())
}

func joinUserHex(userIDs []ids.UserId) string {
	hexes := make([]string, len(userIDs))
	for i, u := range userIDs {
		hexes[i] = u.Hex()
	}
	sort.Strings(hexes)
	return strings.Join(hexes, ":")
}

// ByID loads the lobby with the given id, or (nil, nil) if it does not
// exist.
func (m *LobbyMapper) ByID(ctx context.Context, lobbyID ids.LobbyId) (*domain.Lobby, error) {
	keys, err := m.store.Scan(ctx, lobbyIDPattern(lobbyID))
	if err != nil {
		return nil, fmt.Errorf("mapper: scan lobby by id %s: %w", lobbyID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return m.load(ctx, keys[0])
}

// ByUserID finds the lobby containing userID, or (nil, nil) if the user
// is in no lobby.
func (m *LobbyMapper) ByUserID(ctx context.Context, userID ids.UserId) (*domain.Lobby, error) {
	keys, err := m.store.Scan(ctx, lobbyUserPattern(userID))
	if err != nil {
		return nil, fmt.Errorf("mapper: scan lobby by user %s: %w", userID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return m.load(ctx, keys[0])
}

func (m *LobbyMapper) load(ctx context.Context, key string) (*domain.Lobby, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("mapper: load lobby %q: %w", key, err)
	}
	var rec lobbyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("mapper: decode lobby %q: %w", key, err)
	}
	return decodeLobby(rec)
}

func decodeLobby(rec lobbyRecord) (*domain.Lobby, error) {
	lobbyID, err := ids.ParseLobbyId(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("mapper: lobby id: %w", err)
	}
	ruleSet, err := domain.UnmarshalRuleSet(rec.RuleSet)
	if err != nil {
		return nil, fmt.Errorf("mapper: lobby rule set: %w", err)
	}
	order := make([]ids.UserId, len(rec.Users))
	roles := make(map[ids.UserId]domain.Role, len(rec.Users))
	for i, u := range rec.Users {
		uid, err := ids.ParseUserId(u.UserID)
		if err != nil {
			return nil, fmt.Errorf("mapper: lobby user id: %w", err)
		}
		order[i] = uid
		roles[uid] = u.Role
	}
	queue := make([]ids.UserId, len(rec.AdminTransferQueue))
	for i, s := range rec.AdminTransferQueue {
		uid, err := ids.ParseUserId(s)
		if err != nil {
			return nil, fmt.Errorf("mapper: lobby transfer queue id: %w", err)
		}
		queue[i] = uid
	}
	return &domain.Lobby{
		ID:                 lobbyID,
		Name:               rec.Name,
		UserOrder:          order,
		Roles:              roles,
		AdminTransferQueue: queue,
		Password:           rec.Password,
		RuleSet:            ruleSet,
	}, nil
}

func encodeLobby(lobby *domain.Lobby) (lobbyRecord, error) {
	ruleSetJSON, err := domain.MarshalRuleSet(lobby.RuleSet)
	if err != nil {
		return lobbyRecord{}, fmt.Errorf("mapper: encode lobby rule set: %w", err)
	}
	users := make([]lobbyUserEntry, len(lobby.UserOrder))
	for i, uid := range lobby.UserOrder {
		users[i] = lobbyUserEntry{UserID: uid.String(), Role: lobby.Roles[uid]}
	}
	queue := make([]string, len(lobby.AdminTransferQueue))
	for i, uid := range lobby.AdminTransferQueue {
		queue[i] = uid.String()
	}
	return lobbyRecord{
		ID:                 lobby.ID.String(),
		Name:               lobby.Name,
		Users:              users,
		AdminTransferQueue: queue,
		Password:           lobby.Password,
		RuleSet:            ruleSetJSON,
	}, nil
}

// Save writes a brand-new lobby record into pipe.
func (m *LobbyMapper) Save(ctx context.Context, pipe *kv.Pipeline, lobby *domain.Lobby) error {
	rec, err := encodeLobby(lobby)
	if err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mapper: marshal lobby: %w", err)
	}
	pipe.Set(ctx, lobbyKey(lobby.ID, lobby.UserOrder), b, m.ttl)
	return nil
}

// Update rewrites lobby's record. Because the user set is embedded in
// the key, this first deletes the old key (found by id-prefix scan) and
// writes the new key, in the same pipeline.
func (m *LobbyMapper) Update(ctx context.Context, pipe *kv.Pipeline, lobby *domain.Lobby) error {
	oldKeys, err := m.store.Scan(ctx, lobbyIDPattern(lobby.ID))
	if err != nil {
		return fmt.Errorf("mapper: update lobby %s: scan old key: %w", lobby.ID, err)
	}
	pipe.Delete(ctx, oldKeys...)
	return m.Save(ctx, pipe, lobby)
}

// Delete removes every key recorded for lobbyID.
func (m *LobbyMapper) Delete(ctx context.Context, pipe *kv.Pipeline, lobbyID ids.LobbyId) error {
	keys, err := m.store.Scan(ctx, lobbyIDPattern(lobbyID))
	if err != nil {
		return fmt.Errorf("mapper: delete lobby %s: scan: %w", lobbyID, err)
	}
	pipe.Delete(ctx, keys...)
	return nil
}
