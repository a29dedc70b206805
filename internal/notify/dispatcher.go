package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"classchat-service/internal/cache"
	"classchat-service/internal/models"
	"classchat-service/internal/policy"
	"classchat-service/internal/repositories"
)

// Routing keys on the notification exchange.
const (
	KeyMessageSent     = "chat.message.sent"
	KeyMessageReported = "chat.message.reported"
	KeyGroupCreated    = "chat.group.created"
)

// How long the per-recipient daily dedup marker lives.
const dedupTTL = 24 * time.Hour

// Event is the envelope published for every notification.
type Event struct {
	Type       string    `json:"type"`
	GroupID    int       `json:"groupId"`
	GroupName  string    `json:"groupName,omitempty"`
	MessageID  int       `json:"messageId,omitempty"`
	ActorID    int       `json:"actorId"`
	ActorName  string    `json:"actorName"`
	Preview    string    `json:"preview,omitempty"`
	Recipients []int     `json:"recipients"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher is the broker surface the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Dispatcher turns chat activity into broker events. Every method is
// best-effort: failures are logged and never surface to the request that
// triggered them.
type Dispatcher struct {
	publisher Publisher
	users     repositories.UserRepository
	mutes     repositories.MuteRepository
	cache     cache.Cache
	enabled   bool
	now       func() time.Time
}

// NewDispatcher constructs a Dispatcher. muteAware controls whether muted
// recipients are filtered from message events.
func NewDispatcher(publisher Publisher, users repositories.UserRepository, mutes repositories.MuteRepository, c cache.Cache, muteAware bool) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		users:     users,
		mutes:     mutes,
		cache:     c,
		enabled:   muteAware,
		now:       time.Now,
	}
}

// MessageSent notifies group participants about a new message. Recipients
// are the group's members minus the sender and minus anyone who muted the
// group; each recipient is pinged at most once per group per day.
func (d *Dispatcher) MessageSent(ctx context.Context, group models.Group, sender models.Viewer, view models.MessageView) {
	recipients, err := d.users.ListRecipientIDs(ctx, sender.ID, group.Section, group.Course)
	if err != nil {
		log.Warn().Err(err).Int("group_id", group.ID).Msg("notify: list recipients failed")
		return
	}

	targets := make([]int, 0, len(recipients))
	for _, userID := range recipients {
		if d.isMuted(ctx, group.ID, userID) {
			continue
		}
		if !d.claimDaily(ctx, group.ID, userID) {
			continue
		}
		targets = append(targets, userID)
	}
	if len(targets) == 0 {
		return
	}

	d.publish(ctx, KeyMessageSent, Event{
		Type:       KeyMessageSent,
		GroupID:    group.ID,
		GroupName:  group.Name,
		MessageID:  view.ID,
		ActorID:    sender.ID,
		ActorName:  sender.Name,
		Preview:    view.Body,
		Recipients: targets,
		OccurredAt: d.now(),
	})
}

// MessageReported notifies every teacher that a message was flagged.
func (d *Dispatcher) MessageReported(ctx context.Context, group models.Group, reporter models.Viewer, messageID int, reason string) {
	teacherIDs, err := d.users.ListTeacherIDs(ctx)
	if err != nil {
		log.Warn().Err(err).Int("group_id", group.ID).Msg("notify: list teachers failed")
		return
	}
	if len(teacherIDs) == 0 {
		return
	}

	d.publish(ctx, KeyMessageReported, Event{
		Type:       KeyMessageReported,
		GroupID:    group.ID,
		GroupName:  group.Name,
		MessageID:  messageID,
		ActorID:    reporter.ID,
		ActorName:  reporter.Name,
		Preview:    reason,
		Recipients: teacherIDs,
		OccurredAt: d.now(),
	})
}

// GroupCreated notifies the section's students that a new group exists.
func (d *Dispatcher) GroupCreated(ctx context.Context, group models.Group, creator models.Viewer) {
	recipients, err := d.users.ListRecipientIDs(ctx, creator.ID, group.Section, group.Course)
	if err != nil {
		log.Warn().Err(err).Int("group_id", group.ID).Msg("notify: list recipients failed")
		return
	}
	if len(recipients) == 0 {
		return
	}

	d.publish(ctx, KeyGroupCreated, Event{
		Type:       KeyGroupCreated,
		GroupID:    group.ID,
		GroupName:  group.Name,
		ActorID:    creator.ID,
		ActorName:  creator.Name,
		Recipients: recipients,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) publish(ctx context.Context, routingKey string, event Event) {
	if err := d.publisher.Publish(ctx, routingKey, event); err != nil {
		log.Warn().Err(err).Str("routing_key", routingKey).Int("group_id", event.GroupID).Msg("notify: publish failed")
	}
}

func (d *Dispatcher) isMuted(ctx context.Context, groupID, userID int) bool {
	if !d.enabled {
		return false
	}
	setting, err := d.mutes.Get(ctx, groupID, userID)
	if err != nil {
		log.Warn().Err(err).Int("group_id", groupID).Int("user_id", userID).Msg("notify: mute lookup failed")
		return false
	}
	state, _ := policy.ResolveMuteState(setting, d.now())
	return state.IsMuted
}

// claimDaily reserves the recipient's once-a-day notification slot for the
// group. Returns false when today's slot was already taken.
func (d *Dispatcher) claimDaily(ctx context.Context, groupID, userID int) bool {
	key := fmt.Sprintf("groupchat:notified:%d:%d:%s", groupID, userID, d.now().Format("2006-01-02"))
	if _, ok, err := d.cache.Get(ctx, key); err != nil {
		return true
	} else if ok {
		return false
	}
	if err := d.cache.Set(ctx, key, "1", dedupTTL); err != nil {
		log.Warn().Err(err).Msg("notify: dedup marker write failed")
	}
	return true
}
