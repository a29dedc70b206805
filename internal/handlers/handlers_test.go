package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/cache"
	"classchat-service/internal/live"
	"classchat-service/internal/middleware"
	"classchat-service/internal/mocks"
	"classchat-service/internal/models"
	"classchat-service/internal/notify"
	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
	"classchat-service/internal/storage"
)

var (
	anyCtx           = mock.Anything
	errGroupNotFound = repositories.ErrGroupNotFound
	errMsgNotFound   = repositories.ErrMessageNotFound
)

var (
	mathGroup = models.Group{ID: 7, Name: "Math", Section: "Section 1", Course: "Mathematics", CreatedBy: 1}

	teacher  = models.Viewer{ID: 1, Name: "Ms. Reyes", Role: "teacher"}
	student  = models.Viewer{ID: 2, Name: "Dan", Role: "student", Section: "Section 1", Course: "Mathematics"}
	outsider = models.Viewer{ID: 5, Name: "Eve", Role: "student", Section: "Section 2", Course: "Biology"}
)

type env struct {
	groups    *mocks.GroupRepositoryMock
	messages  *mocks.MessageRepositoryMock
	receipts  *mocks.ReadReceiptRepositoryMock
	reports   *mocks.ReportRepositoryMock
	mutes     *mocks.MuteRepositoryMock
	users     *mocks.UserRepositoryMock
	publisher *mocks.PublisherMock
	hub       *live.Hub
	tracker   *presence.Tracker

	messageHandler  *MessageHandler
	groupHandler    *GroupHandler
	presenceHandler *PresenceHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{
		groups:    new(mocks.GroupRepositoryMock),
		messages:  new(mocks.MessageRepositoryMock),
		receipts:  new(mocks.ReadReceiptRepositoryMock),
		reports:   new(mocks.ReportRepositoryMock),
		mutes:     new(mocks.MuteRepositoryMock),
		users:     new(mocks.UserRepositoryMock),
		publisher: new(mocks.PublisherMock),
		hub:       live.NewHub(),
	}

	mem := cache.NewMemory()
	e.tracker = presence.NewTracker(mem, e.users)
	builder := snapshot.NewBuilder(e.messages, e.receipts, e.tracker)
	dispatcher := notify.NewDispatcher(e.publisher, e.users, e.mutes, mem, true)

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	e.messageHandler = NewMessageHandler(e.groups, e.messages, e.receipts, e.reports, builder, e.tracker, e.hub, dispatcher, store, true)
	e.groupHandler = NewGroupHandler(e.groups, e.mutes, builder, dispatcher, true)
	e.presenceHandler = NewPresenceHandler(e.groups, e.tracker)
	return e
}

func (e *env) router(v models.Viewer) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) { middleware.SetViewer(c, v) })

	r.GET("/groups", e.groupHandler.ListGroups)
	r.POST("/groups", e.groupHandler.CreateGroup)
	r.POST("/groups/:group_id/mute", e.groupHandler.ToggleMute)

	r.GET("/groups/:group_id/messages", e.messageHandler.ListMessages)
	r.POST("/groups/:group_id/messages", e.messageHandler.PostMessage)
	r.POST("/groups/:group_id/seen", e.messageHandler.MarkSeen)

	r.POST("/groups/:group_id/typing", e.presenceHandler.SetTyping)
	r.GET("/groups/:group_id/typing", e.presenceHandler.TypingStatus)
	r.POST("/groups/:group_id/presence", e.presenceHandler.SetPresence)
	r.GET("/groups/:group_id/presence", e.presenceHandler.PresenceStatus)

	r.PATCH("/messages/:message_id", e.messageHandler.EditMessage)
	r.DELETE("/messages/:message_id", e.messageHandler.DeleteMessage)
	r.POST("/messages/:message_id/pin", e.messageHandler.TogglePin)
	r.POST("/messages/:message_id/reactions", e.messageHandler.ToggleReaction)
	r.POST("/messages/:message_id/report", e.messageHandler.ReportMessage)
	r.GET("/messages/:message_id/media", e.messageHandler.Media)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func groupMessage(id int, sender models.Viewer, body string) models.Message {
	return models.Message{
		ID:          id,
		ChatGroupID: mathGroup.ID,
		SenderID:    sender.ID,
		Kind:        models.KindText,
		Body:        body,
		Reactions:   models.ReactionMap{},
	}
}

func withSender(m models.Message, sender models.Viewer) models.MessageWithSender {
	return models.MessageWithSender{Message: m, SenderName: sender.Name, SenderRole: sender.Role}
}

func TestRoutesRejectUnknownGroup(t *testing.T) {
	e := newEnv(t)
	e.groups.On("GetGroup", anyCtx, 99).Return(models.Group{}, errGroupNotFound)

	w := doJSON(e.router(teacher), http.MethodGet, "/groups/99/messages", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
