package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestUserNameFallbacks(t *testing.T) {
	u := User{Email: "sandy.toes@example.com"}
	assert.Equal(t, "sandy.toes", u.Name())

	u.FirstName = strPtr("Sandy")
	assert.Equal(t, "Sandy", u.Name())

	u.LastName = strPtr("Toes")
	assert.Equal(t, "Sandy Toes", u.Name())

	u.DisplayName = strPtr("  ")
	assert.Equal(t, "Sandy Toes", u.Name(), "blank display name is ignored")

	u.DisplayName = strPtr("Captain Cornhole")
	assert.Equal(t, "Captain Cornhole", u.Name())
}

func TestWinRate(t *testing.T) {
	assert.Zero(t, (&User{}).WinRate())
	assert.Equal(t, 100.0, (&User{BagsWins: 5}).WinRate())
	assert.Equal(t, 66.7, (&User{BagsWins: 2, BagsLosses: 1}).WinRate())
	assert.Equal(t, 0.75, (&User{BagsWins: 3, BagsLosses: 1}).WinRatio())
}

func TestPlayerEntryUserRef(t *testing.T) {
	id := uuid.New()

	got, ok := PlayerEntry{ID: strPtr(UserRefString(id)), Name: "A"}.UserRef()
	require.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = PlayerEntry{ID: strPtr(id.String())}.UserRef()
	require.True(t, ok, "bare UUIDs are accepted")
	assert.Equal(t, id, got)

	for _, guest := range []PlayerEntry{
		{Name: "Guest"},
		{ID: strPtr("guest_1"), Name: "Guest"},
		{ID: strPtr("user_not-a-uuid"), Name: "Guest"},
		{ID: strPtr(UserRefString(uuid.Nil))},
	} {
		_, ok := guest.UserRef()
		assert.False(t, ok, "%+v should be a guest", guest)
	}
}

func TestRosterCodec(t *testing.T) {
	raw, err := EncodeRoster(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	entries, err := DecodeRoster(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	raw, err = EncodeRoster([]PlayerEntry{{ID: strPtr("user_x"), Name: "X"}, {Name: "Guest"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"user_x","name":"X"},{"id":null,"name":"Guest"}]`, string(raw))
}

func TestRSVPStatusValid(t *testing.T) {
	assert.True(t, RSVPGoing.Valid())
	assert.True(t, RSVPNotGoing.Valid())
	assert.True(t, RSVPInterested.Valid())
	assert.False(t, RSVPStatus("maybe").Valid())
	assert.False(t, RSVPStatus("").Valid())
}
