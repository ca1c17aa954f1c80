package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleSetKind is the JSON discriminator distinguishing rule-set (and
// game-kind) variants. Match on this; never dispatch by reflecting on a
// concrete type.
type RuleSetKind string

// RuleSetConnectFour is the only rule set implemented today; other rule
// sets are added by introducing a new RuleSetKind and a new case in
// MarshalRuleSet/UnmarshalRuleSet, never by type-switching elsewhere in
// the codebase.
const RuleSetConnectFour RuleSetKind = "connect_four"

// RuleSet is the tagged-union contract every lobby rule set and game
// kind satisfies.
type RuleSet interface {
	Kind() RuleSetKind
	MaxPlayers() int
	MinPlayers() int
}

// ConnectFourRuleSet is the ruleset for a two-player Connect Four match.
type ConnectFourRuleSet struct {
	TimeForEachPlayer time.Duration
}

func (ConnectFourRuleSet) Kind() RuleSetKind { return RuleSetConnectFour }
func (ConnectFourRuleSet) MaxPlayers() int   { return 2 }
func (ConnectFourRuleSet) MinPlayers() int   { return 2 }

const (
	MinTimeForEachPlayer = 30 * time.Second
	MaxTimeForEachPlayer = 3 * time.Minute
)

// ValidateRuleSet checks the §4.5 rule-set bounds; CreateLobby calls it.
func ValidateRuleSet(rs RuleSet) error {
	switch v := rs.(type) {
	case ConnectFourRuleSet:
		if v.TimeForEachPlayer < MinTimeForEachPlayer || v.TimeForEachPlayer > MaxTimeForEachPlayer {
			return ErrInvalidLobbyRuleSet
		}
		return nil
	default:
		return ErrInvalidLobbyRuleSet
	}
}

type ruleSetEnvelope struct {
	Type              RuleSetKind `json:"type"`
	TimeForEachPlayer float64     `json:"time_for_each_player"`
}

// MarshalRuleSet serializes a RuleSet as durations-in-seconds JSON
// carrying a "type" discriminator, per the data mapper's wire format.
func MarshalRuleSet(rs RuleSet) ([]byte, error) {
	switch v := rs.(type) {
	case ConnectFourRuleSet:
		return json.Marshal(ruleSetEnvelope{
			Type:              RuleSetConnectFour,
			TimeForEachPlayer: v.TimeForEachPlayer.Seconds(),
		})
	default:
		return nil, fmt.Errorf("domain: marshal rule set: unsupported type %T", rs)
	}
}

// UnmarshalRuleSet is the inverse of MarshalRuleSet.
func UnmarshalRuleSet(b []byte) (RuleSet, error) {
	var env ruleSetEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("domain: unmarshal rule set: %w", err)
	}
	switch env.Type {
	case RuleSetConnectFour:
		return ConnectFourRuleSet{
			TimeForEachPlayer: time.Duration(env.TimeForEachPlayer * float64(time.Second)),
		}, nil
	default:
		return nil, fmt.Errorf("domain: unmarshal rule set: unknown type %q", env.Type)
	}
}
