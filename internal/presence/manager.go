package presence

import (
	"errors"

	"github.com/taskfolio/realtime/internal/ierr"
	"go.uber.org/zap"
)

// Groups is the transport capability the presence protocol is built on:
// room-addressed delivery plus direct delivery to one connection or to all
// connections of a user. Sends are fire-and-forget; an unreachable peer never
// fails the call.
type Groups interface {
	AddToGroup(connectionId string, group string)
	RemoveFromGroup(connectionId string, group string)
	SendToGroup(group string, event string, payload any, except ...string)
	SendToConnection(connectionId string, event string, payload any)
	SendToUser(userId string, event string, payload any)
}

// Manager owns the registry and composes it with the transport groups into
// the user-visible presence protocol.
type Manager struct {
	logger   *zap.Logger
	registry *Registry
	groups   Groups
}

func NewManager(
	logger *zap.Logger,
	registry *Registry,
	groups Groups,
) *Manager {
	return &Manager{
		logger,
		registry,
		groups,
	}
}

// Join associates the connection with the project room, sends the joiner the
// full post-join member list, and notifies the rest of the room.
//
// A connection is in at most one room: joining while already in another room
// leaves that room first, with a left-notification to its remaining members.
// Re-joining the current room refreshes the member metadata and re-sends the
// snapshot without notifying the room again.
func (m *Manager) Join(connectionId string, userId string, projectId string, displayName string, avatarUrl string) error {
	if connectionId == "" || userId == "" || projectId == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("connectionId, userId and projectId are required"))
	}

	member := Member{
		ConnectionId: connectionId,
		UserId:       userId,
		DisplayName:  displayName,
		AvatarUrl:    avatarUrl,
	}

	if current, ok := m.registry.Room(connectionId); ok {
		if current == projectId {
			snapshot := m.registry.Associate(connectionId, projectId, member)
			m.groups.SendToConnection(connectionId, EventSnapshot, snapshot)

			return nil
		}

		m.logger.Debug("connection switching rooms",
			zap.String("connectionId", connectionId),
			zap.String("from", current),
			zap.String("to", projectId))

		m.remove(connectionId, current)
	}

	m.groups.AddToGroup(connectionId, projectId)
	snapshot := m.registry.Associate(connectionId, projectId, member)

	m.groups.SendToConnection(connectionId, EventSnapshot, snapshot)
	m.groups.SendToGroup(projectId, EventJoined, member, connectionId)

	return nil
}

// Leave removes the connection from the given project room. Leaving a room
// the connection is not in is a no-op.
func (m *Manager) Leave(connectionId string, projectId string) {
	current, ok := m.registry.Room(connectionId)
	if !ok || current != projectId {
		return
	}

	m.remove(connectionId, projectId)
}

// Disconnect is the transport-triggered cleanup hook. It resolves the room
// through the reverse index, so it works without the client having sent an
// explicit leave, and tolerates connections that never joined anything.
// A second call for the same connection is a no-op.
func (m *Manager) Disconnect(connectionId string) {
	projectId, ok := m.registry.Room(connectionId)
	if !ok {
		return
	}

	m.remove(connectionId, projectId)
}

func (m *Manager) remove(connectionId string, projectId string) {
	m.groups.RemoveFromGroup(connectionId, projectId)

	gone, member, ok := m.registry.Dissociate(connectionId)
	if !ok {
		return
	}

	m.groups.SendToGroup(gone, EventLeft, LeftEvent{UserId: member.UserId})
}
