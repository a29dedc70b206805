package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryExpiryOnRead(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	current := time.Now()
	c.now = func() time.Time { return current }

	require.NoError(t, c.Set(ctx, "typing", "1", 8*time.Second))

	current = current.Add(7 * time.Second)
	_, ok, _ := c.Get(ctx, "typing")
	assert.True(t, ok, "entry must survive within TTL")

	current = current.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "typing")
	assert.False(t, ok, "entry must read as a miss after TTL")

	// Expired read removed the entry entirely.
	c.mu.RLock()
	_, present := c.entries["typing"]
	c.mu.RUnlock()
	assert.False(t, present)
}

func TestMemoryOverwriteExtendsDeadline(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	current := time.Now()
	c.now = func() time.Time { return current }

	require.NoError(t, c.Set(ctx, "presence", "1", 10*time.Second))
	current = current.Add(8 * time.Second)
	require.NoError(t, c.Set(ctx, "presence", "1", 10*time.Second))
	current = current.Add(8 * time.Second)

	_, ok, _ := c.Get(ctx, "presence")
	assert.True(t, ok)
}
