package broadcaster

// Broadcaster is the selector-addressed delivery API used by the event
// producers: the presence handlers and the CRUD/notification/activity
// services that fan out an event after a successful mutation. Every call is
// fire-and-forget; the caller is never told whether an individual recipient
// received the message, only handed back the envelope that was sent.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{
		hub,
	}
}

// ToConnection delivers to the one connection only.
func (b *Broadcaster) ToConnection(connectionId string, event string, payload any) Message {
	message := NewMessage(event, payload)
	b.hub.BroadcastToConnection(message, connectionId)

	return message
}

// ToRoom delivers to every connection currently in the project room.
func (b *Broadcaster) ToRoom(projectId string, event string, payload any) Message {
	message := NewMessage(event, payload)
	b.hub.BroadcastToGroup(message, projectId)

	return message
}

// ToOthersInRoom delivers to every connection in the project room except the
// given one, typically the connection whose action caused the event.
func (b *Broadcaster) ToOthersInRoom(projectId string, exceptConnectionId string, event string, payload any) Message {
	message := NewMessage(event, payload)
	b.hub.BroadcastToGroup(message, projectId, exceptConnectionId)

	return message
}

// ToUser delivers to all connections of the user, across rooms. Used for
// direct notifications that are not tied to a project room.
func (b *Broadcaster) ToUser(userId string, event string, payload any) Message {
	message := NewMessage(event, payload)
	b.hub.BroadcastToUser(message, userId)

	return message
}
