package snapshot

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"classchat-service/internal/models"
	"classchat-service/internal/policy"
	"classchat-service/internal/presence"
	"classchat-service/internal/repositories"
)

// Builder assembles the viewer-scoped projection of a group: visible
// messages plus the ephemeral typing and presence listings. The result is
// the unit pushed to live subscribers.
type Builder struct {
	messages repositories.MessageRepository
	receipts repositories.ReadReceiptRepository
	presence *presence.Tracker
	now      func() time.Time
}

// NewBuilder constructs a Builder.
func NewBuilder(messages repositories.MessageRepository, receipts repositories.ReadReceiptRepository, tracker *presence.Tracker) *Builder {
	return &Builder{messages: messages, receipts: receipts, presence: tracker, now: time.Now}
}

// Messages returns the group's visible messages as viewer-scoped views, in
// the stable COALESCE(published_at, created_at), id order.
func (b *Builder) Messages(ctx context.Context, group models.Group, viewer models.Viewer) ([]models.MessageView, error) {
	now := b.now()
	msgs, err := b.messages.ListVisible(ctx, group.ID, now)
	if err != nil {
		return nil, fmt.Errorf("list visible messages: %w", err)
	}

	ids := make([]int, 0, len(msgs))
	replyIDs := make([]int, 0)
	replySeen := map[int]struct{}{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if m.ReplyToMessageID != nil {
			if _, ok := replySeen[*m.ReplyToMessageID]; !ok {
				replySeen[*m.ReplyToMessageID] = struct{}{}
				replyIDs = append(replyIDs, *m.ReplyToMessageID)
			}
		}
	}

	readersByMessage, err := b.receipts.ListReadersByMessage(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list readers: %w", err)
	}

	replyTargets := map[int]models.MessageWithSender{}
	if len(replyIDs) > 0 {
		targets, err := b.messages.ListWithSenderByIDs(ctx, replyIDs)
		if err != nil {
			return nil, fmt.Errorf("list reply targets: %w", err)
		}
		for _, t := range targets {
			replyTargets[t.ID] = t
		}
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		var replyTo *models.MessageWithSender
		if m.ReplyToMessageID != nil {
			if target, ok := replyTargets[*m.ReplyToMessageID]; ok {
				replyTo = &target
			}
		}
		views = append(views, MapMessage(m, replyTo, readersByMessage[m.ID], viewer))
	}
	return views, nil
}

// MessageView projects a single message for mutation responses, loading its
// reply target and readers.
func (b *Builder) MessageView(ctx context.Context, messageID int, viewer models.Viewer) (models.MessageView, error) {
	msg, err := b.messages.GetWithSender(ctx, messageID)
	if err != nil {
		return models.MessageView{}, err
	}

	var replyTo *models.MessageWithSender
	if msg.ReplyToMessageID != nil {
		target, err := b.messages.GetWithSender(ctx, *msg.ReplyToMessageID)
		if err == nil {
			replyTo = &target
		} else if err != repositories.ErrMessageNotFound {
			return models.MessageView{}, err
		}
	}

	readersByMessage, err := b.receipts.ListReadersByMessage(ctx, []int{msg.ID})
	if err != nil {
		return models.MessageView{}, err
	}
	return MapMessage(msg, replyTo, readersByMessage[msg.ID], viewer), nil
}

// Build assembles the full snapshot pushed to subscribers.
func (b *Builder) Build(ctx context.Context, group models.Group, viewer models.Viewer) (models.Snapshot, error) {
	messages, err := b.Messages(ctx, group, viewer)
	if err != nil {
		return models.Snapshot{}, err
	}
	typing, err := b.presence.ListTyping(ctx, group, viewer.ID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list typing: %w", err)
	}
	presenceUsers, err := b.presence.ListPresence(ctx, group, viewer.ID)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("list presence: %w", err)
	}
	return models.Snapshot{
		Messages:      messages,
		TypingUsers:   typing,
		ActiveUsers:   presence.ActiveNames(presenceUsers),
		PresenceUsers: presenceUsers,
	}, nil
}

// Hash fingerprints a snapshot so idle groups are not re-pushed. The view
// ordering is deterministic, so equal state always hashes equal.
func Hash(s models.Snapshot) string {
	payload, _ := json.Marshal(s)
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// MapMessage builds the public projection of one message for a viewer.
func MapMessage(m models.MessageWithSender, replyTo *models.MessageWithSender, readers []models.ReadUser, viewer models.Viewer) models.MessageView {
	isDeleted := m.IsDeleted()
	isSender := viewer.ID == m.SenderID
	timestamp := m.EffectiveTime()

	view := models.MessageView{
		ID:               m.ID,
		SenderID:         m.SenderID,
		SenderName:       m.SenderName,
		SenderRole:       strings.ToLower(m.SenderRole),
		ReplyToMessageID: m.ReplyToMessageID,
		Kind:             m.Kind,
		Body:             resolveBody(m),
		CreatedAt:        timestamp.Format("03:04 PM"),
		CreatedAtIso:     timestamp.Format(time.RFC3339),
		IsScheduled:      m.PublishedAt != nil && m.PublishedAt.After(m.CreatedAt),
		ScheduledFor:     m.PublishedAt,
		FileName:         m.FileName,
		FileSize:         m.FileSize,
		Reactions:        summarizeReactions(m.Reactions, viewer.ID),
		IsDeleted:        isDeleted,
		IsEdited:         m.EditedAt != nil,
		CanEdit:          isSender && !isDeleted && policy.CanEditKind(m.Kind),
		CanDelete:        !isDeleted && (isSender || viewer.IsTeacher()),
		CanPin:           !isDeleted && (isSender || viewer.IsTeacher()),
		IsPinned:         m.IsPinned,
	}
	if m.SenderAvatar != nil {
		view.SenderAvatar = *m.SenderAvatar
	}

	seenUsers := []models.ReadUser{}
	seenIDs := map[int]struct{}{}
	for _, reader := range readers {
		if reader.ID == m.SenderID {
			continue
		}
		if _, ok := seenIDs[reader.ID]; ok {
			continue
		}
		seenIDs[reader.ID] = struct{}{}
		seenUsers = append(seenUsers, reader)
	}
	seenBy := make([]string, 0, len(seenUsers))
	for _, reader := range seenUsers {
		seenBy = append(seenBy, reader.Name)
	}
	view.SeenUsers = seenUsers
	view.SeenBy = seenBy
	view.SeenCount = len(seenBy)

	if replyTo != nil {
		view.ReplyTo = mapReplyPreview(*replyTo)
	}
	return view
}

func mapReplyPreview(target models.MessageWithSender) *models.ReplyPreview {
	var body string
	switch target.Kind {
	case models.KindFile:
		if target.FileName != nil {
			body = *target.FileName
		} else {
			body = "File"
		}
	case models.KindImage:
		body = "[Image]"
	default:
		body = resolveBody(target)
	}
	preview := &models.ReplyPreview{
		ID:         target.ID,
		SenderName: target.SenderName,
		Body:       truncate(body, policy.ReplyPreviewLength),
		Kind:       target.Kind,
	}
	if target.SenderAvatar != nil {
		preview.SenderAvatar = *target.SenderAvatar
	}
	return preview
}

// resolveBody swaps stored blob paths for the media route so clients never
// see raw storage paths.
func resolveBody(m models.MessageWithSender) string {
	if ExtractStoragePath(m.Message) != "" {
		return fmt.Sprintf("/messages/%d/media", m.ID)
	}
	return m.Body
}

// ExtractStoragePath pulls the blob-store path out of a file/image message
// body, tolerating the older URL-shaped forms still present in stored rows.
func ExtractStoragePath(m models.Message) string {
	if m.Kind != models.KindFile && m.Kind != models.KindImage {
		return ""
	}
	body := strings.TrimSpace(m.Body)
	if body == "" {
		return ""
	}
	if strings.HasPrefix(body, "chat-uploads/") {
		return body
	}
	if strings.HasPrefix(body, "/storage/chat-uploads/") {
		return strings.TrimPrefix(body, "/storage/")
	}
	if parsed, err := url.Parse(body); err == nil {
		if idx := strings.Index(parsed.Path, "/storage/chat-uploads/"); idx >= 0 {
			return strings.TrimPrefix(parsed.Path[idx:], "/storage/")
		}
	}
	return ""
}

func summarizeReactions(raw models.ReactionMap, viewerID int) []models.ReactionView {
	normalized := raw.Normalize()
	views := make([]models.ReactionView, 0, len(normalized))
	for emoji, userIDs := range normalized {
		reacted := false
		for _, id := range userIDs {
			if id == viewerID {
				reacted = true
				break
			}
		}
		views = append(views, models.ReactionView{Emoji: emoji, Count: len(userIDs), Reacted: reacted})
	}
	// Count descending; emoji ascending on ties so the hash is stable.
	sort.Slice(views, func(i, j int) bool {
		if views[i].Count != views[j].Count {
			return views[i].Count > views[j].Count
		}
		return views[i].Emoji < views[j].Emoji
	})
	return views
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
