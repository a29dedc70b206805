package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"classchat-service/internal/handlers"
	"classchat-service/internal/live"
	"classchat-service/internal/middleware"
	"classchat-service/internal/models"
	"classchat-service/internal/observability"
	"classchat-service/internal/policy"
	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 20 * time.Second
)

// snapshotEvent is the frame pushed over the socket.
type snapshotEvent struct {
	Type     string          `json:"type"`
	Snapshot models.Snapshot `json:"snapshot"`
}

// GroupStreamHandler serves the websocket alternative to the SSE stream:
// same snapshots, same hash dedup, same bounded window. The server closes
// the connection when the window elapses and clients reconnect.
type GroupStreamHandler struct {
	groups  repositories.GroupRepository
	builder *snapshot.Builder
	tracker *presence.Tracker
	hub     *live.Hub
	window  time.Duration
}

// NewGroupStreamHandler builds a GroupStreamHandler.
func NewGroupStreamHandler(groups repositories.GroupRepository, builder *snapshot.Builder, tracker *presence.Tracker, hub *live.Hub) *GroupStreamHandler {
	return &GroupStreamHandler{groups: groups, builder: builder, tracker: tracker, hub: hub, window: handlers.StreamWindow}
}

// Handle upgrades the connection and streams snapshots until the client
// disconnects. Auth runs in middleware; browser clients pass the token as a
// query parameter.
func (h *GroupStreamHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("classchat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	v, ok := middleware.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	groupID, err := pathGroupID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	group, err := h.groups.GetGroup(ctx, groupID)
	if err != nil || !policy.CanAccessGroup(v, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for group"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	observability.IncStreamActive("ws")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// The request context dies with the handshake once the connection is
	// hijacked, so the stream goroutine runs on its own context.
	streamCtx := context.WithoutCancel(ctx)

	go func() {
		signals, cancel := h.hub.Subscribe(group.ID)
		defer func() {
			cancel()
			conn.Close()
			observability.DecStreamActive("ws")
		}()

		h.tracker.Touch(streamCtx, group.ID, v.ID)

		ticker := time.NewTicker(handlers.PollInterval)
		defer ticker.Stop()
		pinger := time.NewTicker(pingPeriod)
		defer pinger.Stop()
		deadline := time.NewTimer(h.window)
		defer deadline.Stop()

		lastHash := ""
		push := func() bool {
			snap, err := h.builder.Build(streamCtx, group, v)
			if err != nil {
				log.Warn().Err(err).Int("group_id", group.ID).Msg("ws snapshot build failed")
				return true
			}
			hash := snapshot.Hash(snap)
			if hash == lastHash {
				return true
			}
			lastHash = hash

			payload, err := json.Marshal(snapshotEvent{Type: "snapshot", Snapshot: snap})
			if err != nil {
				return true
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return false
			}
			observability.IncSnapshotPushed("ws")
			return true
		}

		if !push() {
			return
		}
		for {
			select {
			case <-done:
				return
			case <-signals:
				if !push() {
					return
				}
			case <-ticker.C:
				if !push() {
					return
				}
			case <-pinger.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				h.tracker.Touch(streamCtx, group.ID, v.ID)
			case <-deadline.C:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream window elapsed"),
					time.Now().Add(writeWait))
				return
			}
		}
	}()
}

func pathGroupID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("group_id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid group id")
	}
	return id, nil
}
