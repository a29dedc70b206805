package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/cache"
	"classchat-service/internal/mocks"
	"classchat-service/internal/models"
)

func participants() []models.User {
	return []models.User{
		{ID: 1, Name: "Ms. Reyes", Role: "teacher"},
		{ID: 2, Name: "Dan", Role: "student"},
		{ID: 3, Name: "Alice", Role: "student"},
	}
}

func TestListTypingExcludesViewerAndExpired(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	tracker := NewTracker(cache.NewMemory(), users)
	group := models.Group{ID: 7, Section: "Section 1", Course: "Mathematics"}

	users.On("ListParticipants", mock.Anything, "Section 1", "Mathematics").Return(participants(), nil)

	tracker.SetTyping(ctx, group.ID, 2, true)
	tracker.SetTyping(ctx, group.ID, 3, true)

	names, err := tracker.ListTyping(ctx, group, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dan"}, names, "viewer must be excluded")

	tracker.SetTyping(ctx, group.ID, 2, false)
	names, err = tracker.ListTyping(ctx, group, 3)
	require.NoError(t, err)
	assert.Empty(t, names, "explicit stop must clear the flag immediately")
}

func TestTypingExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	mem := cache.NewMemory()
	tracker := NewTracker(mem, users)
	group := models.Group{ID: 7, Section: "Section 1", Course: "Mathematics"}

	users.On("ListParticipants", mock.Anything, "Section 1", "Mathematics").Return(participants(), nil)

	require.NoError(t, mem.Set(ctx, "groupchat:typing:7:2", "1", -time.Second))

	names, err := tracker.ListTyping(ctx, group, 1)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListPresenceSortsOnlineFirstThenName(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	tracker := NewTracker(cache.NewMemory(), users)
	group := models.Group{ID: 7, Section: "Section 1", Course: "Mathematics"}

	users.On("ListParticipants", mock.Anything, "Section 1", "Mathematics").Return(participants(), nil)

	tracker.Touch(ctx, group.ID, 2) // Dan online

	listing, err := tracker.ListPresence(ctx, group, 99)
	require.NoError(t, err)
	require.Len(t, listing, 3)

	assert.Equal(t, "Dan", listing[0].Name)
	assert.True(t, listing[0].IsOnline)
	require.NotNil(t, listing[0].LastSeenAt)

	assert.Equal(t, "Alice", listing[1].Name)
	assert.False(t, listing[1].IsOnline)
	assert.Equal(t, "Ms. Reyes", listing[2].Name)

	assert.Equal(t, []string{"Dan"}, ActiveNames(listing))
}

func TestListPresenceExcludesViewer(t *testing.T) {
	ctx := context.Background()
	users := new(mocks.UserRepositoryMock)
	tracker := NewTracker(cache.NewMemory(), users)
	group := models.Group{ID: 7, Section: "Section 1", Course: "Mathematics"}

	users.On("ListParticipants", mock.Anything, "Section 1", "Mathematics").Return(participants(), nil)

	listing, err := tracker.ListPresence(ctx, group, 2)
	require.NoError(t, err)
	require.Len(t, listing, 2)
	for _, u := range listing {
		assert.NotEqual(t, 2, u.ID)
	}
}
