package ids

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIds_AreDistinctAndWellFormed(t *testing.T) {
	a := NewLobbyId()
	b := NewLobbyId()
	assert.NotEqual(t, a, b)
	assert.Len(t, a.Hex(), 32, "Hex must be the 32-char no-dash encoding used in key schemas")
	assert.Len(t, a.String(), 36, "String must be the canonical dashed encoding")
}

func TestNewPlayerStateId_RotatesOnEveryCall(t *testing.T) {
	a := NewPlayerStateId()
	b := NewPlayerStateId()
	assert.NotEqual(t, a, b)
}

func TestParseUserId_RoundTripsWithString(t *testing.T) {
	want := NewUserId()
	got, err := ParseUserId(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseUserId_RejectsGarbage(t *testing.T) {
	_, err := ParseUserId("not-a-uuid")
	assert.Error(t, err)
}

func TestParseLobbyId_RoundTripsWithString(t *testing.T) {
	want := NewLobbyId()
	got, err := ParseLobbyId(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseGameId_RoundTripsWithString(t *testing.T) {
	want := NewGameId()
	got, err := ParseGameId(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseOperationId_RoundTripsWithString(t *testing.T) {
	want := NewOperationId()
	got, err := ParseOperationId(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParsePlayerStateId_RoundTripsWithString(t *testing.T) {
	want := NewPlayerStateId()
	got, err := ParsePlayerStateId(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUserId_JSONRoundTrip(t *testing.T) {
	want := NewUserId()

	b, err := json.Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, `"`+want.String()+`"`, string(b))

	var got UserId
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got)
}

func TestLobbyId_JSONRoundTripInsideAStruct(t *testing.T) {
	type wrapper struct {
		ID LobbyId `json:"id"`
	}
	want := wrapper{ID: NewLobbyId()}

	b, err := json.Marshal(want)
	require.NoError(t, err)

	var got wrapper
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got)
}
