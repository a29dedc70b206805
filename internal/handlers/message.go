package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"classchat-service/internal/apperrors"
	"classchat-service/internal/live"
	"classchat-service/internal/models"
	"classchat-service/internal/notify"
	"classchat-service/internal/observability"
	"classchat-service/internal/policy"
	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
	"classchat-service/internal/snapshot"
	"classchat-service/internal/storage"
)

// MessageHandler manages the message lifecycle: post, list, edit, delete,
// pin, react, report, mark-seen, and attachment serving.
type MessageHandler struct {
	groups     repositories.GroupRepository
	messages   repositories.MessageRepository
	receipts   repositories.ReadReceiptRepository
	reports    repositories.ReportRepository
	builder    *snapshot.Builder
	tracker    *presence.Tracker
	hub        *live.Hub
	dispatcher *notify.Dispatcher
	store      storage.BlobStore
	reportFlag bool
	now        func() time.Time
}

// NewMessageHandler builds a MessageHandler. reportsEnabled gates the report
// capability; with it off, the report endpoint degrades to 503.
func NewMessageHandler(
	groups repositories.GroupRepository,
	messages repositories.MessageRepository,
	receipts repositories.ReadReceiptRepository,
	reports repositories.ReportRepository,
	builder *snapshot.Builder,
	tracker *presence.Tracker,
	hub *live.Hub,
	dispatcher *notify.Dispatcher,
	store storage.BlobStore,
	reportsEnabled bool,
) *MessageHandler {
	return &MessageHandler{
		groups:     groups,
		messages:   messages,
		receipts:   receipts,
		reports:    reports,
		builder:    builder,
		tracker:    tracker,
		hub:        hub,
		dispatcher: dispatcher,
		store:      store,
		reportFlag: reportsEnabled,
		now:        time.Now,
	}
}

// ListMessages returns the group's current snapshot: visible messages plus
// typing and presence listings. This is also the short-poll fallback for
// clients without a live stream.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	h.tracker.Touch(ctx, group.ID, v.ID)

	snap, err := h.builder.Build(ctx, group, v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// PostMessage appends a message to the group. Multipart requests may carry a
// file for file/image kinds; teachers may schedule the send with a future
// scheduled_for. Retried sends append again: posting is not idempotent.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	now := h.now()

	in, replyToID, fileHeader, err := h.bindPost(c)
	if err != nil {
		respondError(c, err)
		return
	}

	publishAt, err := policy.ValidateNewMessage(in, v, now)
	if err != nil {
		respondError(c, err)
		return
	}

	if replyToID != nil {
		target, err := h.messages.GetMessage(ctx, *replyToID)
		if err != nil || target.ChatGroupID != group.ID {
			respondError(c, apperrors.Validation("Reply target not found in this group."))
			return
		}
	}

	msg := models.Message{
		ChatGroupID:      group.ID,
		SenderID:         v.ID,
		ReplyToMessageID: replyToID,
		Kind:             in.Kind,
		Body:             strings.TrimSpace(in.Body),
		Reactions:        models.ReactionMap{},
		PublishedAt:      publishAt,
	}

	if in.HasFile {
		key := storage.ObjectKey(group.ID, in.File.Name)
		src, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer src.Close()
		if err := h.store.Put(ctx, key, src, in.File.Size, in.File.MIME); err != nil {
			respondError(c, err)
			return
		}
		name := in.File.Name
		size := policy.FormatBytes(in.File.Size)
		msg.Body = key
		msg.FileName = &name
		msg.FileSize = &size
	}

	created, err := h.messages.CreateMessage(ctx, msg)
	if err != nil {
		respondError(c, err)
		return
	}

	h.tracker.ClearTyping(ctx, group.ID, v.ID)
	h.tracker.Touch(ctx, group.ID, v.ID)
	observability.IncMessagePosted(created.Kind)

	// A scheduled send is acknowledged without a view; the message surfaces
	// in snapshots once its publish time arrives.
	if publishAt != nil {
		c.JSON(http.StatusCreated, gin.H{
			"scheduled":    true,
			"scheduledFor": publishAt.Format(time.RFC3339),
			"message":      nil,
		})
		return
	}

	h.hub.Notify(group.ID)
	view, err := h.builder.MessageView(ctx, created.ID, v)
	if err != nil {
		respondError(c, err)
		return
	}
	h.dispatcher.MessageSent(ctx, group, v, view)

	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// EditMessage rewrites the body of an editable message. Sender only; the
// last write wins when edits race.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	msg, group, v, ok := h.loadMessage(c)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := policy.ValidateEdit(msg, v, req.Body); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.messages.UpdateBody(ctx, msg.ID, strings.TrimSpace(req.Body), h.now()); err != nil {
		respondError(c, err)
		return
	}
	h.hub.Notify(group.ID)

	view, err := h.builder.MessageView(ctx, msg.ID, v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

// DeleteMessage tombstones a message in place. Sender or any teacher; a
// repeat delete returns the same tombstone.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	msg, group, v, ok := h.loadMessage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if !policy.CanModerate(msg, v) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot delete this message."})
		return
	}
	if !msg.IsDeleted() {
		if _, err := h.messages.SoftDelete(ctx, msg.ID, v.ID, h.now()); err != nil {
			respondError(c, err)
			return
		}
		h.hub.Notify(group.ID)
	}

	view, err := h.builder.MessageView(ctx, msg.ID, v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": view})
}

// TogglePin flips the message's pinned flag. Sender or any teacher.
func (h *MessageHandler) TogglePin(c *gin.Context) {
	msg, group, v, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if msg.IsDeleted() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deleted messages cannot be pinned."})
		return
	}
	if !policy.CanModerate(msg, v) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot pin this message."})
		return
	}

	ctx := c.Request.Context()
	updated, err := h.messages.SetPinned(ctx, msg.ID, !msg.IsPinned, v.ID, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	h.hub.Notify(group.ID)

	view, err := h.builder.MessageView(ctx, msg.ID, v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isPinned": updated.IsPinned, "message": view})
}

// ToggleReaction flips the viewer's reaction. Reacting twice with the same
// emoji removes it.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	msg, group, v, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if msg.IsDeleted() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Deleted messages cannot be reacted to."})
		return
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Emoji) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Emoji is required."})
		return
	}

	ctx := c.Request.Context()
	reactions := msg.Reactions.Toggle(strings.TrimSpace(req.Emoji), v.ID)
	if _, err := h.messages.UpdateReactions(ctx, msg.ID, reactions); err != nil {
		respondError(c, err)
		return
	}
	h.hub.Notify(group.ID)

	view, err := h.builder.MessageView(ctx, msg.ID, v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

// ReportMessage files a report against someone else's message. At most one
// open report per (message, reporter); repeats are acknowledged without a
// duplicate.
func (h *MessageHandler) ReportMessage(c *gin.Context) {
	if !h.reportFlag {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reports are not available."})
		return
	}
	msg, group, v, ok := h.loadMessage(c)
	if !ok {
		return
	}
	if msg.SenderID == v.ID {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "You cannot report your own message."})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	report := models.Report{
		ChatMessageID:  msg.ID,
		ChatGroupID:    group.ID,
		ReportedBy:     v.ID,
		ReportedUserID: msg.SenderID,
		Status:         models.ReportStatusOpen,
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		report.Reason = &reason
	}
	created, err := h.reports.Create(ctx, report)
	if err != nil {
		respondError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"ok": true, "alreadyReported": true})
		return
	}

	h.dispatcher.MessageReported(ctx, group, v, msg.ID, strings.TrimSpace(req.Reason))
	c.JSON(http.StatusCreated, gin.H{"ok": true, "alreadyReported": false})
}

// MarkSeen records read receipts for visible messages in the group up to the
// client-supplied lastMessageId, or up to the newest visible message when the
// client sends none. Own messages are excluded. Idempotent: the second call
// marks zero.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	group, v, ok := loadGroup(c, h.groups)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	now := h.now()

	var req struct {
		LastMessageID int `json:"lastMessageId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	target := req.LastMessageID
	if target <= 0 {
		maxID, err := h.messages.MaxVisibleID(ctx, group.ID, now)
		if err != nil {
			respondError(c, err)
			return
		}
		target = maxID
	}
	if target == 0 {
		c.JSON(http.StatusOK, gin.H{"marked": 0})
		return
	}

	candidates, err := h.messages.ListVisibleIDsUpTo(ctx, group.ID, target, v.ID, now)
	if err != nil {
		respondError(c, err)
		return
	}

	alreadyRead, err := h.receipts.ListReadMessageIDs(ctx, v.ID, candidates)
	if err != nil {
		respondError(c, err)
		return
	}
	readSet := make(map[int]struct{}, len(alreadyRead))
	for _, id := range alreadyRead {
		readSet[id] = struct{}{}
	}

	receipts := make([]models.ReadReceipt, 0, len(candidates))
	for _, id := range candidates {
		if _, seen := readSet[id]; seen {
			continue
		}
		receipts = append(receipts, repositories.NewReceipt(id, v.ID, now))
	}
	if len(receipts) > 0 {
		if err := h.receipts.InsertReceipts(ctx, receipts); err != nil {
			respondError(c, err)
			return
		}
		h.hub.Notify(group.ID)
	}

	h.tracker.Touch(ctx, group.ID, v.ID)
	c.JSON(http.StatusOK, gin.H{"marked": len(receipts)})
}

// Media streams the attachment behind a file/image message.
func (h *MessageHandler) Media(c *gin.Context) {
	msg, _, _, ok := h.loadMessage(c)
	if !ok {
		return
	}
	key := snapshot.ExtractStoragePath(msg)
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no media on this message"})
		return
	}

	rc, info, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
			return
		}
		respondError(c, err)
		return
	}
	defer rc.Close()

	extraHeaders := map[string]string{}
	if msg.FileName != nil {
		extraHeaders["Content-Disposition"] = `inline; filename="` + *msg.FileName + `"`
	}
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, extraHeaders)
}

// loadMessage resolves the message from the path and checks the viewer's
// access through the owning group.
func (h *MessageHandler) loadMessage(c *gin.Context) (models.Message, models.Group, models.Viewer, bool) {
	v, ok := viewer(c)
	if !ok {
		return models.Message{}, models.Group{}, models.Viewer{}, false
	}
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return models.Message{}, models.Group{}, v, false
	}

	ctx := c.Request.Context()
	msg, err := h.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		} else {
			respondError(c, err)
		}
		return models.Message{}, models.Group{}, v, false
	}

	group, err := h.groups.GetGroup(ctx, msg.ChatGroupID)
	if err != nil {
		respondError(c, err)
		return models.Message{}, models.Group{}, v, false
	}
	if !policy.CanAccessGroup(v, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this group chat."})
		return models.Message{}, models.Group{}, v, false
	}
	return msg, group, v, true
}

// bindPost reads the post input from either a multipart form or JSON.
func (h *MessageHandler) bindPost(c *gin.Context) (policy.NewMessage, *int, *multipart.FileHeader, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return h.bindMultipart(c)
	}

	var req struct {
		Kind             string `json:"kind"`
		Body             string `json:"body"`
		ReplyToMessageID *int   `json:"replyToMessageId"`
		ScheduledFor     string `json:"scheduledFor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return policy.NewMessage{}, nil, nil, apperrors.Validation("invalid request body")
	}
	if req.Kind == "" {
		req.Kind = models.KindText
	}
	in := policy.NewMessage{
		Kind:         req.Kind,
		Body:         req.Body,
		ScheduledFor: req.ScheduledFor,
	}
	return in, req.ReplyToMessageID, nil, nil
}

func (h *MessageHandler) bindMultipart(c *gin.Context) (policy.NewMessage, *int, *multipart.FileHeader, error) {
	kind := c.PostForm("kind")
	if kind == "" {
		kind = models.KindText
	}
	in := policy.NewMessage{
		Kind:         kind,
		Body:         c.PostForm("body"),
		ScheduledFor: c.PostForm("scheduledFor"),
	}

	var replyToID *int
	if raw := c.PostForm("replyToMessageId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return policy.NewMessage{}, nil, nil, apperrors.Validation("Reply target not found in this group.")
		}
		replyToID = &id
	}

	fileHeader, err := c.FormFile("file")
	switch {
	case err == nil:
		in.HasFile = true
		in.File = policy.Upload{
			Name: fileHeader.Filename,
			Size: fileHeader.Size,
			MIME: fileHeader.Header.Get("Content-Type"),
		}
	case errors.Is(err, http.ErrMissingFile):
		fileHeader = nil
	default:
		return policy.NewMessage{}, nil, nil, apperrors.Validation("invalid upload")
	}
	return in, replyToID, fileHeader, nil
}
