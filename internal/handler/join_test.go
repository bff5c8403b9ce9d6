package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfolio/realtime/internal/auth"
	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/presence"
	"go.uber.org/zap"
)

type nopGroups struct{}

func (nopGroups) AddToGroup(string, string)                  {}
func (nopGroups) RemoveFromGroup(string, string)             {}
func (nopGroups) SendToGroup(string, string, any, ...string) {}
func (nopGroups) SendToConnection(string, string, any)       {}
func (nopGroups) SendToUser(string, string, any)             {}

func newJoinHandler() (*JoinHandler, *presence.Registry) {
	registry := presence.NewRegistry()
	manager := presence.NewManager(zap.NewNop(), registry, nopGroups{})

	return NewJoinHandler(NewProjectIdValidator(), manager), registry
}

func connectionContext(userId string, projects ...string) context.Context {
	connection := broadcaster.NewConnection("c1", 8)
	if userId != "" {
		connection.SetAuthentication(&auth.Authentication{
			Subject:            userId,
			AuthorizedProjects: projects,
		})
	}

	return broadcaster.WithConnection(context.Background(), connection)
}

func TestJoinHandler(t *testing.T) {
	t.Run("joins an authorized project", func(t *testing.T) {
		joinHandler, registry := newJoinHandler()

		response, err := joinHandler.Handle(connectionContext("u1", "p1"), JoinRequest{
			ProjectId:   "p1",
			DisplayName: "Alice",
			AvatarUrl:   "https://avatars.example/u1",
		})

		require.NoError(t, err)
		assert.Equal(t, "p1", response.ProjectId)

		members := registry.Members("p1")
		require.Len(t, members, 1)
		assert.Equal(t, "u1", members[0].UserId)
		assert.Equal(t, "Alice", members[0].DisplayName)
	})

	t.Run("requires authentication", func(t *testing.T) {
		joinHandler, _ := newJoinHandler()

		_, err := joinHandler.Handle(connectionContext(""), JoinRequest{ProjectId: "p1"})

		var handlerErr ierr.Error
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, ierr.ErrorCodeUnauthenticated, handlerErr.Code)
	})

	t.Run("rejects an unauthorized project", func(t *testing.T) {
		joinHandler, _ := newJoinHandler()

		_, err := joinHandler.Handle(connectionContext("u1", "p2"), JoinRequest{ProjectId: "p1"})

		var handlerErr ierr.Error
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, ierr.ErrorCodePermissionDenied, handlerErr.Code)
	})

	t.Run("rejects a malformed project id", func(t *testing.T) {
		joinHandler, _ := newJoinHandler()

		_, err := joinHandler.Handle(connectionContext("u1", "p1"), JoinRequest{ProjectId: "no spaces allowed"})

		var handlerErr ierr.Error
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, handlerErr.Code)
	})

	t.Run("fails without a connection in context", func(t *testing.T) {
		joinHandler, _ := newJoinHandler()

		_, err := joinHandler.Handle(context.Background(), JoinRequest{ProjectId: "p1"})

		assert.Error(t, err)
	})
}

func TestLeaveHandler(t *testing.T) {
	registry := presence.NewRegistry()
	manager := presence.NewManager(zap.NewNop(), registry, nopGroups{})
	joinHandler := NewJoinHandler(NewProjectIdValidator(), manager)
	leaveHandler := NewLeaveHandler(NewProjectIdValidator(), manager)

	ctx := connectionContext("u1", "p1")

	_, err := joinHandler.Handle(ctx, JoinRequest{ProjectId: "p1", DisplayName: "Alice"})
	require.NoError(t, err)

	response, err := leaveHandler.Handle(ctx, LeaveRequest{ProjectId: "p1"})

	require.NoError(t, err)
	assert.True(t, response.Success)
	assert.Nil(t, registry.Members("p1"))
}
