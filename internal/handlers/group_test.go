package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studybuddy-chat/internal/mocks"
	"studybuddy-chat/internal/models"
	"studybuddy-chat/internal/repositories"
)

const (
	testGroupID = "6f1c2a4e-1d2b-4c55-9a0e-3b7d8f2e9c10"
	testUserID  = "2b0d5f7e-8a41-4f1a-bb3e-7c9e51d2a604"
)

var testUser = models.User{ID: testUserID, FirstName: "Ada", LastName: "Lovelace"}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) NotifyMemberJoined(ctx context.Context, groupID string, user models.User) error {
	args := m.Called(ctx, groupID, user)
	return args.Error(0)
}

func (m *notifierMock) NotifyMemberLeft(ctx context.Context, groupID string, user models.User) error {
	args := m.Called(ctx, groupID, user)
	return args.Error(0)
}

type broadcasterMock struct {
	mock.Mock
}

func (m *broadcasterMock) Broadcast(ctx context.Context, msg models.ChatMessage, sender models.User) models.NewMessagePayload {
	args := m.Called(ctx, msg, sender)
	return args.Get(0).(models.NewMessagePayload)
}

type groupFixture struct {
	groups      *mocks.GroupRepositoryMock
	messages    *mocks.GroupMessageRepositoryMock
	users       *mocks.UserRepositoryMock
	notifier    *notifierMock
	broadcaster *broadcasterMock
	router      *gin.Engine
}

func newGroupFixture(authenticated bool) *groupFixture {
	gin.SetMode(gin.TestMode)
	f := &groupFixture{
		groups:      new(mocks.GroupRepositoryMock),
		messages:    new(mocks.GroupMessageRepositoryMock),
		users:       new(mocks.UserRepositoryMock),
		notifier:    new(notifierMock),
		broadcaster: new(broadcasterMock),
	}
	handler := NewGroupHandler(f.groups, f.messages, f.users, f.notifier, f.broadcaster, nil)

	r := gin.New()
	if authenticated {
		r.Use(func(c *gin.Context) {
			c.Set(userIDContextKey, testUser.ID)
			c.Set(userContextKey, testUser)
			c.Next()
		})
	}
	handler.Register(r)
	f.router = r
	return f
}

func (f *groupFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateGroupSuccess(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("CreateGroup", mock.Anything, testUserID, "Calculus", "weekly", 10).
		Return(models.StudyGroup{ID: testGroupID, Name: "Calculus", OwnerID: testUserID, MaxMembers: 10}, nil).Once()

	rec := f.do(http.MethodPost, "/groups", `{"name":" Calculus ","description":"weekly","maxMembers":10}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.StudyGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	assert.Equal(t, testGroupID, group.ID)
	f.groups.AssertExpectations(t)
}

func TestCreateGroupInvalidBody(t *testing.T) {
	f := newGroupFixture(true)

	for _, body := range []string{`{"name":5}`, `{"name":"x","maxMembers":-1}`, `{"name":"   "}`} {
		rec := f.do(http.MethodPost, "/groups", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	f.groups.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupRoutesRequireUser(t *testing.T) {
	f := newGroupFixture(false)

	rec := f.do(http.MethodGet, "/groups", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication error"}`, rec.Body.String())
}

func TestListGroups(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("ListGroupsForUser", mock.Anything, testUserID).Return([]models.StudyGroup{{ID: testGroupID}}, nil).Once()

	rec := f.do(http.MethodGet, "/groups", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testGroupID)
}

func TestGetGroup(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		f := newGroupFixture(true)
		rec := f.do(http.MethodGet, "/groups/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		f := newGroupFixture(true)
		f.groups.On("GetGroup", mock.Anything, testGroupID).Return(nil, repositories.ErrGroupNotFound).Once()
		rec := f.do(http.MethodGet, "/groups/"+testGroupID, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("with member count", func(t *testing.T) {
		f := newGroupFixture(true)
		f.groups.On("GetGroup", mock.Anything, testGroupID).Return(models.StudyGroup{ID: testGroupID, Name: "Calculus"}, nil).Once()
		f.groups.On("CountMembers", mock.Anything, testGroupID).Return(4, nil).Once()

		rec := f.do(http.MethodGet, "/groups/"+testGroupID, "")

		require.Equal(t, http.StatusOK, rec.Code)
		var detail models.GroupDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		assert.Equal(t, 4, detail.MemberCount)
		assert.Equal(t, "Calculus", detail.Name)
	})
}

func TestJoinGroupStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown group", err: repositories.ErrGroupNotFound, want: http.StatusNotFound},
		{name: "already member", err: repositories.ErrAlreadyMember, want: http.StatusConflict},
		{name: "group full", err: repositories.ErrGroupFull, want: http.StatusConflict},
		{name: "store failure", err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newGroupFixture(true)
			f.groups.On("AddMember", mock.Anything, testGroupID, testUserID).Return(nil, tc.err).Once()

			rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/join", "")

			assert.Equal(t, tc.want, rec.Code)
			f.notifier.AssertNotCalled(t, "NotifyMemberJoined", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestJoinGroupAnnouncesAfterWrite(t *testing.T) {
	f := newGroupFixture(true)
	var written bool
	f.groups.On("AddMember", mock.Anything, testGroupID, testUserID).
		Run(func(mock.Arguments) { written = true }).
		Return(models.GroupMember{GroupID: testGroupID, UserID: testUserID, Role: models.RoleMember, JoinedAt: time.Now()}, nil).Once()
	f.notifier.On("NotifyMemberJoined", mock.Anything, testGroupID, testUser).
		Run(func(mock.Arguments) { assert.True(t, written, "broadcast before durable write") }).
		Return(nil).Once()

	rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/join", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	f.groups.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestJoinGroupSurvivesBroadcastFailure(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("AddMember", mock.Anything, testGroupID, testUserID).Return(models.GroupMember{GroupID: testGroupID, UserID: testUserID}, nil).Once()
	f.notifier.On("NotifyMemberJoined", mock.Anything, testGroupID, testUser).Return(errors.New("count failed")).Once()

	rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/join", "")

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLeaveGroup(t *testing.T) {
	t.Run("not a member", func(t *testing.T) {
		f := newGroupFixture(true)
		f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(nil, nil).Once()

		rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/leave", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		f.groups.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("owner cannot leave", func(t *testing.T) {
		f := newGroupFixture(true)
		f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).
			Return(&models.GroupMember{GroupID: testGroupID, UserID: testUserID, Role: models.RoleOwner}, nil).Once()

		rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/leave", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("member leaves and room is told", func(t *testing.T) {
		f := newGroupFixture(true)
		f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).
			Return(&models.GroupMember{GroupID: testGroupID, UserID: testUserID, Role: models.RoleMember}, nil).Once()
		f.groups.On("RemoveMember", mock.Anything, testGroupID, testUserID).Return(nil).Once()
		f.notifier.On("NotifyMemberLeft", mock.Anything, testGroupID, testUser).Return(nil).Once()

		rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/leave", "")

		assert.Equal(t, http.StatusNoContent, rec.Code)
		f.groups.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})
}

func TestGetGroupMessagesRequiresMembership(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(nil, nil).Once()

	rec := f.do(http.MethodGet, "/groups/"+testGroupID+"/messages", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.messages.AssertNotCalled(t, "ListGroupMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetGroupMessagesResolvesSenders(t *testing.T) {
	f := newGroupFixture(true)
	otherID := "9c3e4b12-77aa-4d0c-8f1e-2a6b5c4d3e21"
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(&models.GroupMember{Role: models.RoleMember}, nil).Once()
	f.messages.On("ListGroupMessages", mock.Anything, testGroupID, 20).Return([]models.ChatMessage{
		{ID: "m1", GroupID: testGroupID, UserID: otherID, Content: "first", Kind: models.KindText, CreatedAt: created},
		{ID: "m2", GroupID: testGroupID, UserID: testUserID, Content: "second", Kind: models.KindLink, CreatedAt: created},
		{ID: "m3", GroupID: testGroupID, UserID: otherID, Content: "third", Kind: models.KindText, CreatedAt: created},
	}, nil).Once()
	f.users.On("FindUserByID", mock.Anything, otherID).Return(models.User{ID: otherID, FirstName: "Alan"}, nil).Once()

	rec := f.do(http.MethodGet, "/groups/"+testGroupID+"/messages?limit=20", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []models.NewMessagePayload `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "Alan", body.Messages[0].Sender.FirstName)
	assert.Equal(t, "Ada", body.Messages[1].Sender.FirstName)
	assert.Equal(t, models.KindLink, body.Messages[1].MessageType)
	assert.Equal(t, created.Format(time.RFC3339Nano), body.Messages[2].Timestamp)
	f.users.AssertExpectations(t)
}

func TestGetGroupMessagesInvalidLimit(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(&models.GroupMember{}, nil).Once()

	rec := f.do(http.MethodGet, "/groups/"+testGroupID+"/messages?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostGroupMessageBroadcasts(t *testing.T) {
	f := newGroupFixture(true)
	stored := models.ChatMessage{ID: "m9", GroupID: testGroupID, UserID: testUserID, Content: "hey", Kind: models.KindText, CreatedAt: time.Now()}
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(&models.GroupMember{}, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, testGroupID, testUserID, "hey", models.KindText).Return(stored, nil).Once()
	f.broadcaster.On("Broadcast", mock.Anything, stored, testUser).
		Return(models.NewMessagePayload{ID: "m9", GroupID: testGroupID, Content: "hey", MessageType: "text"}).Once()

	rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/messages", `{"content":" hey "}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"m9"`)
	f.messages.AssertExpectations(t)
	f.broadcaster.AssertExpectations(t)
}

func TestPostGroupMessageRejectsUnknownType(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(&models.GroupMember{}, nil).Once()

	rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/messages", `{"content":"hey","messageType":"video"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostGroupMessageStoreFailure(t *testing.T) {
	f := newGroupFixture(true)
	f.groups.On("FindMembership", mock.Anything, testGroupID, testUserID).Return(&models.GroupMember{}, nil).Once()
	f.messages.On("CreateMessage", mock.Anything, testGroupID, testUserID, "hey", models.KindText).Return(nil, errors.New("db down")).Once()

	rec := f.do(http.MethodPost, "/groups/"+testGroupID+"/messages", `{"content":"hey"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	f.broadcaster.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
}
