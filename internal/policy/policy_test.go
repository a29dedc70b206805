package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classchat-service/internal/apperrors"
	"classchat-service/internal/models"
)

var (
	teacher = models.Viewer{ID: 1, Name: "Ms. Reyes", Role: "teacher"}
	student = models.Viewer{ID: 2, Name: "Dan", Role: "student", Section: "Section 1", Course: "Mathematics"}
)

func TestIsVisible(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, IsVisible(models.Message{}, now))
	assert.True(t, IsVisible(models.Message{PublishedAt: &past}, now))
	assert.True(t, IsVisible(models.Message{PublishedAt: &now}, now))
	assert.False(t, IsVisible(models.Message{PublishedAt: &future}, now))
}

func TestCanAccessGroup(t *testing.T) {
	group := models.Group{ID: 1, Section: "Section 1", Course: "Mathematics"}
	other := models.Group{ID: 2, Section: "Section 2", Course: "Science"}

	assert.True(t, CanAccessGroup(teacher, group))
	assert.True(t, CanAccessGroup(teacher, other))
	assert.True(t, CanAccessGroup(student, group))
	assert.False(t, CanAccessGroup(student, other))

	unassigned := models.Viewer{ID: 3, Role: "student"}
	assert.False(t, CanAccessGroup(unassigned, group))
	assert.False(t, CanAccessGroup(unassigned, models.Group{}))
}

func TestValidateNewMessageBodyRules(t *testing.T) {
	now := time.Now()

	_, err := ValidateNewMessage(NewMessage{Kind: models.KindText, Body: "  "}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Message body is required.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{Kind: models.KindLink, Body: "not a url"}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Please provide a valid URL.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{Kind: models.KindGif, Body: "https://example.com/a.gif"}, student, now)
	assert.NoError(t, err)

	_, err = ValidateNewMessage(NewMessage{Kind: models.KindQuiz, Body: "quiz:1"}, student, now)
	require.Error(t, err)

	_, err = ValidateNewMessage(NewMessage{Kind: models.KindQuiz, Body: "quiz:1"}, teacher, now)
	assert.NoError(t, err)
}

func TestValidateNewMessageScheduling(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour).Format(time.RFC3339)

	_, err := ValidateNewMessage(NewMessage{Kind: models.KindText, Body: "hi", ScheduledFor: future}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Only teachers can schedule messages.", apperrors.Message(err))

	publishAt, err := ValidateNewMessage(NewMessage{Kind: models.KindText, Body: "hi", ScheduledFor: future}, teacher, now)
	require.NoError(t, err)
	require.NotNil(t, publishAt)
	assert.True(t, publishAt.After(now))

	tooSoon := now.Add(5 * time.Second).Format(time.RFC3339)
	_, err = ValidateNewMessage(NewMessage{Kind: models.KindText, Body: "hi", ScheduledFor: tooSoon}, teacher, now)
	require.Error(t, err)
	assert.Equal(t, "Schedule time must be in the future.", apperrors.Message(err))
}

func TestValidateNewMessageFiles(t *testing.T) {
	now := time.Now()

	_, err := ValidateNewMessage(NewMessage{Kind: models.KindImage}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Image upload is required.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{
		Kind: models.KindImage, HasFile: true,
		File: Upload{Name: "a.pdf", Size: 100, MIME: "application/pdf"},
	}, student, now)
	require.Error(t, err)

	_, err = ValidateNewMessage(NewMessage{
		Kind: models.KindImage, HasFile: true,
		File: Upload{Name: "big.png", Size: 6 * 1024 * 1024, MIME: "image/png"},
	}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Image size must be 5MB or below.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{
		Kind: models.KindFile, HasFile: true,
		File: Upload{Name: "notes.exe", Size: 100, MIME: "application/octet-stream"},
	}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Unsupported file type.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{
		Kind: models.KindFile, HasFile: true,
		File: Upload{Name: "notes.PDF", Size: 100, MIME: "application/pdf"},
	}, student, now)
	assert.NoError(t, err)

	_, err = ValidateNewMessage(NewMessage{
		Kind: models.KindText, Body: "hi", HasFile: true,
		File: Upload{Name: "notes.pdf", Size: 100},
	}, student, now)
	require.Error(t, err)

	// A file message with neither upload nor body has nothing to persist.
	_, err = ValidateNewMessage(NewMessage{Kind: models.KindFile, Body: "  "}, student, now)
	require.Error(t, err)
	assert.Equal(t, "Message body is required.", apperrors.Message(err))

	_, err = ValidateNewMessage(NewMessage{Kind: models.KindFile, Body: "see handout from monday"}, student, now)
	assert.NoError(t, err)
}

func TestValidateEdit(t *testing.T) {
	msg := models.Message{ID: 10, SenderID: student.ID, Kind: models.KindText, Body: "old"}

	assert.NoError(t, ValidateEdit(msg, student, "new"))

	err := ValidateEdit(msg, teacher, "new")
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	deletedAt := time.Now()
	deleted := msg
	deleted.DeletedAt = &deletedAt
	assert.Error(t, ValidateEdit(deleted, student, "new"))

	image := msg
	image.Kind = models.KindImage
	assert.Error(t, ValidateEdit(image, student, "new"))

	link := msg
	link.Kind = models.KindLink
	assert.Error(t, ValidateEdit(link, student, "not a url"))
	assert.NoError(t, ValidateEdit(link, student, "https://example.com"))

	quiz := msg
	quiz.Kind = models.KindQuiz
	assert.Error(t, ValidateEdit(quiz, student, "new"))
}

func TestReactionToggleSelfInverse(t *testing.T) {
	r := models.ReactionMap{"👍": {7}}
	once := r.Toggle("👍", 9)
	assert.ElementsMatch(t, []int{7, 9}, once["👍"])

	twice := once.Toggle("👍", 9)
	assert.ElementsMatch(t, []int{7}, twice["👍"])

	cleared := twice.Toggle("👍", 7)
	_, ok := cleared["👍"]
	assert.False(t, ok, "empty reaction sets must be pruned")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}
