package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/models"
)

func TestResolveMuteState(t *testing.T) {
	now := time.Now()

	state, expired := ResolveMuteState(nil, now)
	assert.False(t, state.IsMuted)
	assert.False(t, expired)

	state, expired = ResolveMuteState(&models.MuteSetting{}, now)
	assert.False(t, state.IsMuted)
	assert.False(t, expired)

	mutedAt := now.Add(-time.Hour)
	state, expired = ResolveMuteState(&models.MuteSetting{MutedAt: &mutedAt}, now)
	assert.True(t, state.IsMuted)
	assert.Nil(t, state.MutedUntilAt)
	assert.False(t, expired)

	// Muted for 1h at T: still muted at T+59m, lapsed at T+61m with the row
	// flagged for clearing.
	until := mutedAt.Add(2 * time.Hour)
	setting := &models.MuteSetting{MutedAt: &mutedAt, MutedUntil: &until}

	state, expired = ResolveMuteState(setting, now.Add(59*time.Minute))
	assert.True(t, state.IsMuted)
	require.NotNil(t, state.MutedUntilAt)
	assert.False(t, expired)

	state, expired = ResolveMuteState(setting, now.Add(61*time.Minute))
	assert.False(t, state.IsMuted)
	assert.Nil(t, state.MutedUntilAt)
	assert.True(t, expired)
}

func TestNextMuteState(t *testing.T) {
	now := time.Now()

	mutedAt, mutedUntil, err := NextMuteState(false, "", now)
	require.NoError(t, err)
	require.NotNil(t, mutedAt)
	assert.Nil(t, mutedUntil, "flip to muted means muted forever")

	mutedAt, mutedUntil, err = NextMuteState(true, "", now)
	require.NoError(t, err)
	assert.Nil(t, mutedAt)
	assert.Nil(t, mutedUntil)

	mutedAt, mutedUntil, err = NextMuteState(true, "off", now)
	require.NoError(t, err)
	assert.Nil(t, mutedAt)
	assert.Nil(t, mutedUntil)

	mutedAt, mutedUntil, err = NextMuteState(false, "forever", now)
	require.NoError(t, err)
	require.NotNil(t, mutedAt)
	assert.Nil(t, mutedUntil)

	mutedAt, mutedUntil, err = NextMuteState(false, "8h", now)
	require.NoError(t, err)
	require.NotNil(t, mutedAt)
	require.NotNil(t, mutedUntil)
	assert.Equal(t, now.Add(8*time.Hour), *mutedUntil)

	_, _, err = NextMuteState(false, "3d", now)
	assert.Error(t, err)
}
