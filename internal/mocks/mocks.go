package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"classchat-service/internal/models"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListParticipants(ctx context.Context, section, course string) ([]models.User, error) {
	args := m.Called(ctx, section, course)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) ListTeacherIDs(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *UserRepositoryMock) ListRecipientIDs(ctx context.Context, excludeID int, section, course string) ([]int, error) {
	args := m.Called(ctx, excludeID, section, course)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, createdBy int, name, section, course string) (models.Group, error) {
	args := m.Called(ctx, createdBy, name, section, course)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForViewer(ctx context.Context, viewer models.Viewer) ([]models.GroupWithCreator, error) {
	args := m.Called(ctx, viewer)
	var groups []models.GroupWithCreator
	if val := args.Get(0); val != nil {
		groups = val.([]models.GroupWithCreator)
	}
	return groups, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetWithSender(ctx context.Context, messageID int) (models.MessageWithSender, error) {
	args := m.Called(ctx, messageID)
	var out models.MessageWithSender
	if val := args.Get(0); val != nil {
		out = val.(models.MessageWithSender)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListVisible(ctx context.Context, groupID int, now time.Time) ([]models.MessageWithSender, error) {
	args := m.Called(ctx, groupID, now)
	var out []models.MessageWithSender
	if val := args.Get(0); val != nil {
		out = val.([]models.MessageWithSender)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListWithSenderByIDs(ctx context.Context, messageIDs []int) ([]models.MessageWithSender, error) {
	args := m.Called(ctx, messageIDs)
	var out []models.MessageWithSender
	if val := args.Get(0); val != nil {
		out = val.([]models.MessageWithSender)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MaxVisibleID(ctx context.Context, groupID int, now time.Time) (int, error) {
	args := m.Called(ctx, groupID, now)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListVisibleIDsUpTo(ctx context.Context, groupID, maxID, excludeSenderID int, now time.Time) ([]int, error) {
	args := m.Called(ctx, groupID, maxID, excludeSenderID, now)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateBody(ctx context.Context, messageID int, body string, editedAt time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, body, editedAt)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID, deletedBy int, at time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, deletedBy, at)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateReactions(ctx context.Context, messageID int, reactions models.ReactionMap) (models.Message, error) {
	args := m.Called(ctx, messageID, reactions)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) SetPinned(ctx context.Context, messageID int, pinned bool, pinnedBy int, at time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, pinned, pinnedBy, at)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

type ReadReceiptRepositoryMock struct {
	mock.Mock
}

func (m *ReadReceiptRepositoryMock) ListReadMessageIDs(ctx context.Context, userID int, messageIDs []int) ([]int, error) {
	args := m.Called(ctx, userID, messageIDs)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ReadReceiptRepositoryMock) InsertReceipts(ctx context.Context, receipts []models.ReadReceipt) error {
	args := m.Called(ctx, receipts)
	return args.Error(0)
}

func (m *ReadReceiptRepositoryMock) ListReadersByMessage(ctx context.Context, messageIDs []int) (map[int][]models.ReadUser, error) {
	args := m.Called(ctx, messageIDs)
	var out map[int][]models.ReadUser
	if val := args.Get(0); val != nil {
		out = val.(map[int][]models.ReadUser)
	}
	return out, args.Error(1)
}

type ReportRepositoryMock struct {
	mock.Mock
}

func (m *ReportRepositoryMock) Create(ctx context.Context, report models.Report) (bool, error) {
	args := m.Called(ctx, report)
	return args.Bool(0), args.Error(1)
}

type MuteRepositoryMock struct {
	mock.Mock
}

func (m *MuteRepositoryMock) Get(ctx context.Context, groupID, userID int) (*models.MuteSetting, error) {
	args := m.Called(ctx, groupID, userID)
	var setting *models.MuteSetting
	if val := args.Get(0); val != nil {
		setting = val.(*models.MuteSetting)
	}
	return setting, args.Error(1)
}

func (m *MuteRepositoryMock) ListForUser(ctx context.Context, userID int) ([]models.MuteSetting, error) {
	args := m.Called(ctx, userID)
	var settings []models.MuteSetting
	if val := args.Get(0); val != nil {
		settings = val.([]models.MuteSetting)
	}
	return settings, args.Error(1)
}

func (m *MuteRepositoryMock) Upsert(ctx context.Context, groupID, userID int, mutedAt, mutedUntil *time.Time) error {
	args := m.Called(ctx, groupID, userID, mutedAt, mutedUntil)
	return args.Error(0)
}

func (m *MuteRepositoryMock) ClearExpired(ctx context.Context, settingIDs []int) error {
	args := m.Called(ctx, settingIDs)
	return args.Error(0)
}
