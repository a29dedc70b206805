package policy

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"classchat-service/internal/apperrors"
	"classchat-service/internal/models"
)

const (
	// MaxBodyLength caps text bodies on post and edit.
	MaxBodyLength = 5000
	// MaxImageBytes caps image uploads.
	MaxImageBytes = 5 * 1024 * 1024
	// MaxUploadBytes caps any upload.
	MaxUploadBytes = 10 * 1024 * 1024
	// MinScheduleLead is how far in the future a scheduled send must be.
	MinScheduleLead = 10 * time.Second
	// ReplyPreviewLength truncates quoted reply bodies.
	ReplyPreviewLength = 120
)

var allowedFileExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "ppt": {}, "pptx": {},
	"xls": {}, "xlsx": {}, "txt": {}, "zip": {}, "rar": {}, "csv": {},
}

var editableKinds = map[string]struct{}{
	models.KindText: {}, models.KindQuiz: {}, models.KindEmoji: {}, models.KindLink: {},
}

var validKinds = map[string]struct{}{
	models.KindText: {}, models.KindQuiz: {}, models.KindFile: {}, models.KindImage: {},
	models.KindGif: {}, models.KindSticker: {}, models.KindEmoji: {}, models.KindLink: {},
}

// IsVisible reports whether a message may be shown at the given instant.
// Applied everywhere messages are listed or counted, including the mark-seen
// target resolution — a scheduled message stays invisible to all readers
// until its time arrives.
func IsVisible(m models.Message, now time.Time) bool {
	return m.PublishedAt == nil || !m.PublishedAt.After(now)
}

// CanAccessGroup implements the membership rule: teachers reach every group,
// students only the group matching their own non-empty section and course.
func CanAccessGroup(viewer models.Viewer, group models.Group) bool {
	if viewer.IsTeacher() {
		return true
	}
	return viewer.Section != "" && viewer.Course != "" &&
		viewer.Section == group.Section && viewer.Course == group.Course
}

// CanEditKind reports whether a message kind supports editing at all.
func CanEditKind(kind string) bool {
	_, ok := editableKinds[kind]
	return ok
}

// Upload describes an incoming file for validation, decoupled from multipart.
type Upload struct {
	Name string
	Size int64
	MIME string
}

// NewMessage is the validated input of a post operation.
type NewMessage struct {
	Kind         string
	Body         string
	ScheduledFor string
	HasFile      bool
	File         Upload
}

// ValidateNewMessage applies the kind-specific body and file rules and
// resolves the optional schedule. Returns the publish time (nil for "now")
// and the first validation failure.
func ValidateNewMessage(in NewMessage, viewer models.Viewer, now time.Time) (*time.Time, error) {
	if _, ok := validKinds[in.Kind]; !ok {
		return nil, apperrors.Validation("Unsupported message kind.")
	}
	if len(in.Body) > MaxBodyLength {
		return nil, apperrors.Validation("Message body is too long.")
	}
	if in.Kind == models.KindQuiz && !viewer.IsTeacher() {
		return nil, apperrors.Validation("Only teachers can share quizzes in group chat.")
	}

	var publishAt *time.Time
	if in.ScheduledFor != "" {
		if !viewer.IsTeacher() {
			return nil, apperrors.Validation("Only teachers can schedule messages.")
		}
		parsed, err := parseScheduleTime(in.ScheduledFor)
		if err != nil {
			return nil, err
		}
		if !parsed.After(now.Add(MinScheduleLead)) {
			return nil, apperrors.Validation("Schedule time must be in the future.")
		}
		publishAt = &parsed
	}

	switch in.Kind {
	case models.KindLink:
		if !isValidURL(in.Body) {
			return nil, apperrors.Validation("Please provide a valid URL.")
		}
	case models.KindGif, models.KindSticker:
		if !isValidURL(in.Body) {
			return nil, apperrors.Validation("GIF/Sticker must be a valid URL.")
		}
	case models.KindText, models.KindQuiz, models.KindEmoji:
		if strings.TrimSpace(in.Body) == "" {
			return nil, apperrors.Validation("Message body is required.")
		}
	}

	if in.HasFile && in.Kind != models.KindFile && in.Kind != models.KindImage {
		return nil, apperrors.Validation("Files are allowed only for file/image message types.")
	}
	if in.HasFile && in.File.Size > MaxUploadBytes {
		return nil, apperrors.Validation("Uploads must be 10MB or below.")
	}

	switch in.Kind {
	case models.KindImage:
		if !in.HasFile {
			return nil, apperrors.Validation("Image upload is required.")
		}
		if !strings.HasPrefix(strings.ToLower(in.File.MIME), "image/") {
			return nil, apperrors.Validation("Only image files are allowed for image messages.")
		}
		if in.File.Size > MaxImageBytes {
			return nil, apperrors.Validation("Image size must be 5MB or below.")
		}
	case models.KindFile:
		if in.HasFile {
			ext := strings.ToLower(strings.TrimPrefix(fileExtension(in.File.Name), "."))
			if _, ok := allowedFileExtensions[ext]; !ok {
				return nil, apperrors.Validation("Unsupported file type.")
			}
		} else if strings.TrimSpace(in.Body) == "" {
			// Without an upload the body is all the message has.
			return nil, apperrors.Validation("Message body is required.")
		}
	}

	return publishAt, nil
}

// ValidateEdit checks the editor and new body against the current message.
func ValidateEdit(m models.Message, viewer models.Viewer, newBody string) error {
	if m.SenderID != viewer.ID {
		return apperrors.Authorization("Only sender can edit this message.")
	}
	if m.IsDeleted() {
		return apperrors.Validation("Deleted messages cannot be edited.")
	}
	if !CanEditKind(m.Kind) {
		return apperrors.Validation("This message type cannot be edited.")
	}
	if m.Kind == models.KindQuiz && !viewer.IsTeacher() {
		return apperrors.Authorization("Only teachers can edit shared quiz messages.")
	}
	trimmed := strings.TrimSpace(newBody)
	if trimmed == "" {
		return apperrors.Validation("Message cannot be empty.")
	}
	if len(trimmed) > MaxBodyLength {
		return apperrors.Validation("Message body is too long.")
	}
	if m.Kind == models.KindLink && !isValidURL(trimmed) {
		return apperrors.Validation("Please provide a valid URL.")
	}
	return nil
}

// CanModerate reports whether the viewer may delete or pin the message.
func CanModerate(m models.Message, viewer models.Viewer) bool {
	return m.SenderID == viewer.ID || viewer.IsTeacher()
}

func parseScheduleTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperrors.Validation("Schedule time is not a valid date.")
}

func isValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func fileExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

// FormatBytes renders a human-readable file size for storage alongside the
// upload.
func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
