package broadcaster

import (
	"encoding/json"
	"sync"

	"github.com/taskfolio/realtime/internal/rpc"
	"go.uber.org/zap"
)

// Hub is the transport-level connection table: every live connection, indexed
// by id, by authenticated user, and by the groups it was added to. It is the
// delivery mechanism behind every broadcast selector.
//
// Delivery is best-effort: frames are offered to each recipient's bounded
// queue and a connection whose queue is full is evicted rather than allowed
// to stall the fan-out.
type Hub struct {
	logger *zap.Logger
	mu     sync.RWMutex

	connections        map[string]*Connection
	connectionsByUser  map[string]map[string]struct{}
	connectionsByGroup map[string]map[string]struct{}
	groupsByConnection map[string]map[string]struct{}
}

func NewHub(
	logger *zap.Logger,
) *Hub {
	return &Hub{
		logger:             logger,
		connections:        make(map[string]*Connection),
		connectionsByUser:  make(map[string]map[string]struct{}),
		connectionsByGroup: make(map[string]map[string]struct{}),
		groupsByConnection: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(connection *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[connection.Id] = connection
}

// Unregister removes the connection from every index and closes it. Safe to
// call more than once for the same connection.
func (h *Hub) Unregister(connectionId string) {
	h.mu.Lock()

	connection, ok := h.connections[connectionId]
	if !ok {
		h.mu.Unlock()

		return
	}

	h.unregisterLocked(connectionId)
	h.mu.Unlock()

	connection.Close()
}

// Bind indexes the connection under the authenticated user so that
// user-addressed sends reach all of the user's connections.
func (h *Hub) Bind(connectionId string, userId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[connectionId]; !ok {
		return
	}

	if _, ok := h.connectionsByUser[userId]; !ok {
		h.connectionsByUser[userId] = make(map[string]struct{})
	}

	h.connectionsByUser[userId][connectionId] = struct{}{}
}

func (h *Hub) AddToGroup(connectionId string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[connectionId]; !ok {
		return
	}

	if _, ok := h.connectionsByGroup[group]; !ok {
		h.connectionsByGroup[group] = make(map[string]struct{})
	}

	h.connectionsByGroup[group][connectionId] = struct{}{}

	if _, ok := h.groupsByConnection[connectionId]; !ok {
		h.groupsByConnection[connectionId] = make(map[string]struct{})
	}

	h.groupsByConnection[connectionId][group] = struct{}{}
}

func (h *Hub) RemoveFromGroup(connectionId string, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if groupConnections, ok := h.connectionsByGroup[group]; ok {
		delete(groupConnections, connectionId)
		if len(groupConnections) == 0 {
			delete(h.connectionsByGroup, group)
		}
	}

	if connectionGroups, ok := h.groupsByConnection[connectionId]; ok {
		delete(connectionGroups, group)
		if len(connectionGroups) == 0 {
			delete(h.groupsByConnection, connectionId)
		}
	}
}

// SendToGroup delivers an event to every connection in the group, skipping
// any listed in except.
func (h *Hub) SendToGroup(group string, event string, payload any, except ...string) {
	h.BroadcastToGroup(NewMessage(event, payload), group, except...)
}

func (h *Hub) SendToConnection(connectionId string, event string, payload any) {
	h.BroadcastToConnection(NewMessage(event, payload), connectionId)
}

// SendToUser delivers an event to every connection bound to the user,
// regardless of which rooms they are in.
func (h *Hub) SendToUser(userId string, event string, payload any) {
	h.BroadcastToUser(NewMessage(event, payload), userId)
}

func (h *Hub) BroadcastToGroup(message Message, group string, except ...string) {
	frame, ok := h.frame(message)
	if !ok {
		return
	}

	h.mu.RLock()

	connectionIds, present := h.connectionsByGroup[group]
	if !present {
		h.mu.RUnlock()

		return
	}

	var stale []string

	for connectionId := range connectionIds {
		if excluded(connectionId, except) {
			continue
		}

		connection, ok := h.connections[connectionId]
		if !ok {
			continue
		}

		if !connection.Enqueue(frame) {
			stale = append(stale, connectionId)
		}
	}

	h.mu.RUnlock()

	h.evict(stale)
}

func (h *Hub) BroadcastToConnection(message Message, connectionId string) {
	frame, ok := h.frame(message)
	if !ok {
		return
	}

	h.mu.RLock()
	connection, present := h.connections[connectionId]
	h.mu.RUnlock()

	if !present {
		return
	}

	if !connection.Enqueue(frame) {
		h.evict([]string{connectionId})
	}
}

func (h *Hub) BroadcastToUser(message Message, userId string) {
	frame, ok := h.frame(message)
	if !ok {
		return
	}

	h.mu.RLock()

	var stale []string

	for connectionId := range h.connectionsByUser[userId] {
		connection, ok := h.connections[connectionId]
		if !ok {
			continue
		}

		if !connection.Enqueue(frame) {
			stale = append(stale, connectionId)
		}
	}

	h.mu.RUnlock()

	h.evict(stale)
}

// frame wraps the envelope in a wire notification and marshals it once, so a
// fan-out does not re-encode per recipient.
func (h *Hub) frame(message Message) ([]byte, bool) {
	params, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to encode event",
			zap.String("event", message.Event),
			zap.Error(err))

		return nil, false
	}

	rawParams := json.RawMessage(params)
	notification := rpc.NewNotification("event", &rawParams)

	frame, err := json.Marshal(notification)
	if err != nil {
		h.logger.Error("failed to encode event",
			zap.String("event", message.Event),
			zap.Error(err))

		return nil, false
	}

	return frame, true
}

func (h *Hub) evict(connectionIds []string) {
	if len(connectionIds) == 0 {
		return
	}

	h.mu.Lock()

	var closing []*Connection

	for _, connectionId := range connectionIds {
		if connection, ok := h.connections[connectionId]; ok {
			h.logger.Warn("connection outbound queue is full, evicting",
				zap.String("connectionId", connectionId))

			h.unregisterLocked(connectionId)
			closing = append(closing, connection)
		}
	}

	h.mu.Unlock()

	for _, connection := range closing {
		connection.Close()
	}
}

// unregisterLocked must be called with the write lock held.
func (h *Hub) unregisterLocked(connectionId string) {
	connection := h.connections[connectionId]
	delete(h.connections, connectionId)

	if userId := connection.UserId(); userId != "" {
		if userConnections, ok := h.connectionsByUser[userId]; ok {
			delete(userConnections, connectionId)
			if len(userConnections) == 0 {
				delete(h.connectionsByUser, userId)
			}
		}
	}

	for group := range h.groupsByConnection[connectionId] {
		groupConnections, ok := h.connectionsByGroup[group]
		if !ok {
			continue
		}

		delete(groupConnections, connectionId)
		if len(groupConnections) == 0 {
			delete(h.connectionsByGroup, group)
		}
	}

	delete(h.groupsByConnection, connectionId)
}

func excluded(connectionId string, except []string) bool {
	for _, exceptId := range except {
		if connectionId == exceptId {
			return true
		}
	}

	return false
}
