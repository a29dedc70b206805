package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// BlobStore is the backing store for message attachments. Keys are
// slash-separated paths under the store root, e.g. "chat-uploads/7/x.pdf".
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey builds the storage key for a new upload: a uuid-prefixed,
// sanitized filename under the group's chat-uploads directory.
func ObjectKey(groupID int, filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = unsafeChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("chat-uploads/%d/%s_%s", groupID, uuid.NewString(), base)
}

// ValidateKey rejects keys that escape the store root or fall outside the
// chat-uploads namespace.
func ValidateKey(key string) error {
	if key == "" {
		return errors.New("storage: empty key")
	}
	if strings.Contains(key, "..") || strings.ContainsAny(key, "\\") || strings.HasPrefix(key, "/") {
		return errors.New("storage: invalid key")
	}
	if !strings.HasPrefix(key, "chat-uploads/") {
		return errors.New("storage: key outside upload namespace")
	}
	return nil
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
