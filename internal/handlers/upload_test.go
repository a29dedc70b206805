package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/models"
)

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(fileContent))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestPostFileMessageStoresBlob(t *testing.T) {
	e := newEnv(t)
	e.groups.On("GetGroup", anyCtx, 7).Return(mathGroup, nil)

	name := "notes.pdf"
	created := models.Message{
		ID: 42, ChatGroupID: 7, SenderID: student.ID, Kind: models.KindFile,
		Body: "chat-uploads/7/x_notes.pdf", FileName: &name,
		Reactions: models.ReactionMap{}, CreatedAt: time.Now(),
	}
	e.messages.On("CreateMessage", anyCtx, mock.MatchedBy(func(m models.Message) bool {
		return m.Kind == models.KindFile &&
			strings.HasPrefix(m.Body, "chat-uploads/7/") &&
			m.FileName != nil && *m.FileName == "notes.pdf" &&
			m.FileSize != nil
	})).Return(created, nil)
	expectView(e, created, student)
	e.users.On("ListRecipientIDs", anyCtx, student.ID, "Section 1", "Mathematics").Return([]int{}, nil)

	body, contentType := multipartBody(t, map[string]string{"kind": "file"}, "file", "notes.pdf", "pdf-bytes")
	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router(student).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	msgView := decode(t, w)["message"].(map[string]any)
	assert.Equal(t, "/messages/42/media", msgView["body"], "clients see the media route, never the storage key")
	assert.Equal(t, "notes.pdf", msgView["fileName"])
}

func TestPostFileMessageRejectsBadExtension(t *testing.T) {
	e := newEnv(t)
	e.groups.On("GetGroup", anyCtx, 7).Return(mathGroup, nil)

	body, contentType := multipartBody(t, map[string]string{"kind": "file"}, "file", "malware.exe", "mz")
	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router(student).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Unsupported file type")
	e.messages.AssertNotCalled(t, "CreateMessage", anyCtx, anyCtx)
}

func TestPostImageRequiresImageMime(t *testing.T) {
	e := newEnv(t)
	e.groups.On("GetGroup", anyCtx, 7).Return(mathGroup, nil)

	// multipart file parts default to application/octet-stream.
	body, contentType := multipartBody(t, map[string]string{"kind": "image"}, "file", "photo.png", "png-bytes")
	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router(student).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Only image files")
}

func TestPostImageWithoutFileRejected(t *testing.T) {
	e := newEnv(t)
	e.groups.On("GetGroup", anyCtx, 7).Return(mathGroup, nil)

	body, contentType := multipartBody(t, map[string]string{"kind": "image"}, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/groups/7/messages", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router(student).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Image upload is required")
}
