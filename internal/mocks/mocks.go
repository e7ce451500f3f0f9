package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studybuddy-chat/internal/models"
	"studybuddy-chat/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) FindUserByID(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, ownerID, name, description string, maxMembers int) (models.StudyGroup, error) {
	args := m.Called(ctx, ownerID, name, description, maxMembers)
	var group models.StudyGroup
	if val := args.Get(0); val != nil {
		group = val.(models.StudyGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.StudyGroup, error) {
	args := m.Called(ctx, groupID)
	var group models.StudyGroup
	if val := args.Get(0); val != nil {
		group = val.(models.StudyGroup)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.StudyGroup, error) {
	args := m.Called(ctx, userID)
	var groups []models.StudyGroup
	if val := args.Get(0); val != nil {
		groups = val.([]models.StudyGroup)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) FindMembership(ctx context.Context, groupID, userID string) (*models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	var member *models.GroupMember
	if val := args.Get(0); val != nil {
		member = val.(*models.GroupMember)
	}
	return member, args.Error(1)
}

func (m *GroupRepositoryMock) CountMembers(ctx context.Context, groupID string) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID string) (models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	var member models.GroupMember
	if val := args.Get(0); val != nil {
		member = val.(models.GroupMember)
	}
	return member, args.Error(1)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) CreateMessage(ctx context.Context, groupID, userID, content string, kind models.MessageKind) (models.ChatMessage, error) {
	args := m.Called(ctx, groupID, userID, content, kind)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, groupID, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
