package policy

import (
	"time"

	"classchat-service/internal/apperrors"
	"classchat-service/internal/models"
)

var muteDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"8h":  8 * time.Hour,
	"24h": 24 * time.Hour,
}

// ResolveMuteState evaluates a raw setting row at an instant. The second
// return reports that the row has lapsed and should be cleared back to
// null/null by the caller (lazy expiry on read).
func ResolveMuteState(setting *models.MuteSetting, now time.Time) (models.MuteState, bool) {
	if setting == nil || setting.MutedAt == nil {
		return models.MuteState{}, false
	}
	if setting.MutedUntil == nil {
		return models.MuteState{IsMuted: true}, false
	}
	if setting.MutedUntil.After(now) {
		return models.MuteState{IsMuted: true, MutedUntilAt: setting.MutedUntil}, false
	}
	return models.MuteState{}, true
}

// NextMuteState applies the duration request against the current state.
// An absent duration flips the state (newly muted means muted forever);
// "off" unmutes; "forever" mutes with no deadline; "1h"/"8h"/"24h" mute
// until now+N hours.
func NextMuteState(currentlyMuted bool, duration string, now time.Time) (mutedAt, mutedUntil *time.Time, err error) {
	switch duration {
	case "":
		if currentlyMuted {
			return nil, nil, nil
		}
		return &now, nil, nil
	case "off":
		return nil, nil, nil
	case "forever":
		return &now, nil, nil
	default:
		d, ok := muteDurations[duration]
		if !ok {
			return nil, nil, apperrors.Validation("Unsupported mute duration.")
		}
		until := now.Add(d)
		return &now, &until, nil
	}
}
