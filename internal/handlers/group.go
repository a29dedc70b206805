package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classchat-service/internal/models"
	"classchat-service/internal/notify"
	"classchat-service/internal/policy"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
)

// GroupHandler manages group listing, creation, and per-group mute settings.
type GroupHandler struct {
	groups     repositories.GroupRepository
	mutes      repositories.MuteRepository
	builder    *snapshot.Builder
	dispatcher *notify.Dispatcher
	muteFlag   bool
	now        func() time.Time
}

// NewGroupHandler builds a GroupHandler. muteEnabled gates the mute-settings
// capability; with it off, mute endpoints degrade to 503 and listings report
// every group unmuted.
func NewGroupHandler(groups repositories.GroupRepository, mutes repositories.MuteRepository, builder *snapshot.Builder, dispatcher *notify.Dispatcher, muteEnabled bool) *GroupHandler {
	return &GroupHandler{
		groups:     groups,
		mutes:      mutes,
		builder:    builder,
		dispatcher: dispatcher,
		muteFlag:   muteEnabled,
		now:        time.Now,
	}
}

// ListGroups returns the groups the viewer belongs to, each with its visible
// messages and the viewer's resolved mute state. Mute rows whose deadline has
// passed are cleared here, on read.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	groups, err := h.groups.ListGroupsForViewer(ctx, v)
	if err != nil {
		respondError(c, err)
		return
	}

	muteByGroup := map[int]*models.MuteSetting{}
	if h.muteFlag {
		settings, err := h.mutes.ListForUser(ctx, v.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		for i := range settings {
			muteByGroup[settings[i].ChatGroupID] = &settings[i]
		}
	}

	now := h.now()
	expiredIDs := []int{}
	summaries := make([]models.GroupSummary, 0, len(groups))
	for _, group := range groups {
		messages, err := h.builder.Messages(ctx, group.Group, v)
		if err != nil {
			respondError(c, err)
			return
		}

		state, expired := policy.ResolveMuteState(muteByGroup[group.ID], now)
		if expired {
			expiredIDs = append(expiredIDs, muteByGroup[group.ID].ID)
		}

		summaries = append(summaries, models.GroupSummary{
			ID:           group.ID,
			Name:         group.Name,
			Section:      group.Section,
			Course:       group.Course,
			CreatedBy:    group.CreatorName,
			IsMuted:      state.IsMuted,
			MutedUntilAt: state.MutedUntilAt,
			Messages:     messages,
		})
	}

	if len(expiredIDs) > 0 {
		if err := h.mutes.ClearExpired(ctx, expiredIDs); err != nil {
			log.Warn().Err(err).Ints("setting_ids", expiredIDs).Msg("mute lazy expiry failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"groups": summaries})
}

// CreateGroup creates a chat group for a section and course. Teachers only.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	if !v.IsTeacher() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only teachers can create group chats."})
		return
	}

	var req struct {
		Name    string `json:"name"`
		Section string `json:"section"`
		Course  string `json:"course"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Section = strings.TrimSpace(req.Section)
	req.Course = strings.TrimSpace(req.Course)
	if req.Name == "" || req.Section == "" || req.Course == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Name, section, and course are required."})
		return
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), v.ID, req.Name, req.Section, req.Course)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatcher.GroupCreated(c.Request.Context(), group, v)

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ToggleMute updates the viewer's mute setting for the group. Without a
// duration the state flips; "off", "forever", "1h", "8h", "24h" set it
// explicitly.
func (h *GroupHandler) ToggleMute(c *gin.Context) {
	if !h.muteFlag {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Mute settings are not available."})
		return
	}
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}

	var req struct {
		Duration string `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	now := h.now()

	setting, err := h.mutes.Get(ctx, group.ID, v.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	state, expired := policy.ResolveMuteState(setting, now)
	if expired {
		if err := h.mutes.ClearExpired(ctx, []int{setting.ID}); err != nil {
			log.Warn().Err(err).Int("setting_id", setting.ID).Msg("mute lazy expiry failed")
		}
	}

	mutedAt, mutedUntil, err := policy.NextMuteState(state.IsMuted, req.Duration, now)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.mutes.Upsert(ctx, group.ID, v.ID, mutedAt, mutedUntil); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isMuted":      mutedAt != nil,
		"mutedUntilAt": mutedUntil,
	})
}
