package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	key := "chat-uploads/7/abc_report.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("pdf-bytes"), 9, "application/pdf"))

	rc, info, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))
	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)

	require.NoError(t, store.Delete(ctx, key))
	_, _, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing object is a noop.
	assert.NoError(t, store.Delete(ctx, key))
}

func TestGetMissingObject(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Get(context.Background(), "chat-uploads/7/nope.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateKeyRejectsTraversalAndForeignPrefixes(t *testing.T) {
	assert.Error(t, ValidateKey(""))
	assert.Error(t, ValidateKey("chat-uploads/../etc/passwd"))
	assert.Error(t, ValidateKey("/chat-uploads/7/a.pdf"))
	assert.Error(t, ValidateKey("avatars/7/a.png"))
	assert.NoError(t, ValidateKey("chat-uploads/7/a.pdf"))
}

func TestObjectKeySanitizesFilename(t *testing.T) {
	key := ObjectKey(7, "../we ird/näme?.pdf")
	require.NoError(t, ValidateKey(key))
	assert.True(t, strings.HasPrefix(key, "chat-uploads/7/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotContains(t, key, " ")
	assert.NotContains(t, key, "?")
}
