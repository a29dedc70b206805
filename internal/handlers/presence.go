package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
)

// PresenceHandler manages the ephemeral typing and online signals.
type PresenceHandler struct {
	groups  repositories.GroupRepository
	tracker *presence.Tracker
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(groups repositories.GroupRepository, tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{groups: groups, tracker: tracker}
}

// SetTyping raises or clears the viewer's typing flag. The flag lapses on
// its own after a few seconds, so a lost "stopped" call self-heals.
func (h *PresenceHandler) SetTyping(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}

	var req struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	h.tracker.SetTyping(ctx, group.ID, v.ID, req.IsTyping)

	names, err := h.tracker.ListTyping(ctx, group, v.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "typingUsers": names})
}

// TypingStatus lists who is typing right now, excluding the viewer.
func (h *PresenceHandler) TypingStatus(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	names, err := h.tracker.ListTyping(c.Request.Context(), group, v.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"typingUsers": names})
}

// SetPresence is the explicit heartbeat: marks the viewer online in the
// group and refreshes their last-seen stamp.
func (h *PresenceHandler) SetPresence(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	h.tracker.Touch(c.Request.Context(), group.ID, v.ID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PresenceStatus lists the group's participants with online flags and last
// seen stamps, online first.
func (h *PresenceHandler) PresenceStatus(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	users, err := h.tracker.ListPresence(c.Request.Context(), group, v.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"activeUsers":   presence.ActiveNames(users),
		"presenceUsers": users,
	})
}
