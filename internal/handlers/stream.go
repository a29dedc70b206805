package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classchat-service/internal/live"
	"classchat-service/internal/observability"
	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
)

// Stream timing. Each SSE response lives at most StreamWindow; clients
// reconnect when it closes. Between hub signals the loop re-checks at
// PollInterval so changes that bypass the hub still surface.
const (
	StreamWindow = 25 * time.Second
	PollInterval = 800 * time.Millisecond
)

// StreamHandler serves the SSE live-update channel.
type StreamHandler struct {
	groups  repositories.GroupRepository
	builder *snapshot.Builder
	tracker *presence.Tracker
	hub     *live.Hub
}

// NewStreamHandler builds a StreamHandler.
func NewStreamHandler(groups repositories.GroupRepository, builder *snapshot.Builder, tracker *presence.Tracker, hub *live.Hub) *StreamHandler {
	return &StreamHandler{groups: groups, builder: builder, tracker: tracker, hub: hub}
}

// Stream pushes viewer-scoped snapshots for up to 25 seconds. A snapshot is
// sent only when its content hash differs from the last one pushed on this
// connection; the first check always pushes. Ends with a close event the
// client uses to reconnect immediately.
func (h *StreamHandler) Stream(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	h.tracker.Touch(ctx, group.ID, v.ID)

	signals, cancel := h.hub.Subscribe(group.ID)
	defer cancel()
	observability.IncStreamActive("sse")
	defer observability.DecStreamActive("sse")

	deadline := time.NewTimer(StreamWindow)
	defer deadline.Stop()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	lastHash := ""
	push := func() bool {
		snap, err := h.builder.Build(ctx, group, v)
		if err != nil {
			log.Warn().Err(err).Int("group_id", group.ID).Msg("stream snapshot build failed")
			return true
		}
		hash := snapshot.Hash(snap)
		if hash == lastHash {
			return true
		}
		lastHash = hash

		payload, err := json.Marshal(snap)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(c.Writer, "event: snapshot\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		observability.IncSnapshotPushed("sse")
		return true
	}

	if !push() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			fmt.Fprint(c.Writer, "event: close\ndata: {\"ok\":true}\n\n")
			flusher.Flush()
			return
		case <-signals:
			if !push() {
				return
			}
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}
