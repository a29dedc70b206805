package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"classchat-service/internal/cache"
	"classchat-service/internal/models"
	"classchat-service/internal/repositories"
)

// TTLs for the two ephemeral signals. Presence rides every chat action;
// typing is short-lived and cleared outright on send or stop.
const (
	OnlineTTL   = 70 * time.Second
	LastSeenTTL = 7 * 24 * time.Hour
	TypingTTL   = 8 * time.Second
)

// Tracker keeps the advisory online/typing state for groups in an injected
// expiring cache. All writes are best-effort: a cache failure is logged and
// never fails the primary operation it rides on.
type Tracker struct {
	cache cache.Cache
	users repositories.UserRepository
	now   func() time.Time
}

// NewTracker constructs a Tracker.
func NewTracker(c cache.Cache, users repositories.UserRepository) *Tracker {
	return &Tracker{cache: c, users: users, now: time.Now}
}

func typingKey(groupID, userID int) string {
	return fmt.Sprintf("groupchat:typing:%d:%d", groupID, userID)
}

func onlineKey(groupID, userID int) string {
	return fmt.Sprintf("groupchat:presence:%d:%d", groupID, userID)
}

func lastSeenKey(groupID, userID int) string {
	return fmt.Sprintf("groupchat:presence:last-seen:%d:%d", groupID, userID)
}

// Touch marks the user online in the group and refreshes their last-seen
// stamp. Both writes are advisory, so ordering between them is irrelevant.
func (t *Tracker) Touch(ctx context.Context, groupID, userID int) {
	now := t.now()
	if err := t.cache.Set(ctx, onlineKey(groupID, userID), "1", OnlineTTL); err != nil {
		log.Warn().Err(err).Int("group_id", groupID).Int("user_id", userID).Msg("presence touch failed")
	}
	stamp := strconv.FormatInt(now.Unix(), 10)
	if err := t.cache.Set(ctx, lastSeenKey(groupID, userID), stamp, LastSeenTTL); err != nil {
		log.Warn().Err(err).Int("group_id", groupID).Int("user_id", userID).Msg("last-seen write failed")
	}
}

// SetTyping raises or clears the typing flag. Raising also touches presence;
// clearing deletes the flag instead of waiting out the TTL.
func (t *Tracker) SetTyping(ctx context.Context, groupID, userID int, isTyping bool) {
	if isTyping {
		if err := t.cache.Set(ctx, typingKey(groupID, userID), "1", TypingTTL); err != nil {
			log.Warn().Err(err).Int("group_id", groupID).Int("user_id", userID).Msg("typing write failed")
		}
		t.Touch(ctx, groupID, userID)
		return
	}
	t.ClearTyping(ctx, groupID, userID)
}

// ClearTyping removes the typing flag outright, as after a send.
func (t *Tracker) ClearTyping(ctx context.Context, groupID, userID int) {
	if err := t.cache.Delete(ctx, typingKey(groupID, userID)); err != nil {
		log.Warn().Err(err).Int("group_id", groupID).Int("user_id", userID).Msg("typing clear failed")
	}
}

// ListTyping returns the names of group participants currently typing,
// excluding the viewer. Expired flags are naturally absent from the cache.
func (t *Tracker) ListTyping(ctx context.Context, group models.Group, viewerID int) ([]string, error) {
	participants, err := t.users.ListParticipants(ctx, group.Section, group.Course)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, candidate := range participants {
		if candidate.ID == viewerID {
			continue
		}
		if _, ok, _ := t.cache.Get(ctx, typingKey(group.ID, candidate.ID)); ok {
			names = append(names, candidate.Name)
		}
	}
	return names, nil
}

// ListPresence returns the group's participants with online flags and last
// seen stamps, excluding the viewer, sorted online-first then name ascending.
func (t *Tracker) ListPresence(ctx context.Context, group models.Group, viewerID int) ([]models.PresenceUser, error) {
	participants, err := t.users.ListParticipants(ctx, group.Section, group.Course)
	if err != nil {
		return nil, err
	}
	users := []models.PresenceUser{}
	for _, candidate := range participants {
		if candidate.ID == viewerID {
			continue
		}
		_, online, _ := t.cache.Get(ctx, onlineKey(group.ID, candidate.ID))

		var lastSeenAt *time.Time
		if raw, ok, _ := t.cache.Get(ctx, lastSeenKey(group.ID, candidate.ID)); ok {
			if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
				stamp := time.Unix(unix, 0).UTC()
				lastSeenAt = &stamp
			}
		}

		users = append(users, models.PresenceUser{
			ID:         candidate.ID,
			Name:       candidate.Name,
			Avatar:     candidate.Avatar(),
			IsOnline:   online,
			LastSeenAt: lastSeenAt,
		})
	}

	sort.SliceStable(users, func(i, j int) bool {
		if users[i].IsOnline != users[j].IsOnline {
			return users[i].IsOnline
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}

// ActiveNames filters a presence listing down to online users' names.
func ActiveNames(users []models.PresenceUser) []string {
	names := []string{}
	for _, u := range users {
		if u.IsOnline {
			names = append(names, u.Name)
		}
	}
	return names
}
