package broadcaster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfolio/realtime/internal/auth"
	"github.com/taskfolio/realtime/internal/rpc"
	"go.uber.org/zap"
)

func authenticated(userId string) *auth.Authentication {
	return &auth.Authentication{
		Subject:            userId,
		AuthorizedProjects: []string{"p1", "p2"},
	}
}

func receiveMessage(t *testing.T, connection *Connection) Message {
	t.Helper()

	select {
	case frame := <-connection.Outbound():
		var request rpc.Request
		require.NoError(t, json.Unmarshal(frame, &request))
		require.Equal(t, "event", request.Method)
		require.NotNil(t, request.Params)

		var message Message
		require.NoError(t, json.Unmarshal(*request.Params, &message))

		return message
	default:
		t.Fatal("expected a queued frame")

		return Message{}
	}
}

func assertNoMessage(t *testing.T, connection *Connection) {
	t.Helper()

	select {
	case frame := <-connection.Outbound():
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestHub_SendToGroup(t *testing.T) {
	logger := zap.NewNop()

	t.Run("delivers to group members only", func(t *testing.T) {
		hub := NewHub(logger)

		c1 := NewConnection("c1", 8)
		c2 := NewConnection("c2", 8)
		c3 := NewConnection("c3", 8)

		hub.Register(c1)
		hub.Register(c2)
		hub.Register(c3)
		hub.AddToGroup("c1", "p1")
		hub.AddToGroup("c2", "p1")
		hub.AddToGroup("c3", "p2")

		hub.SendToGroup("p1", "task.created", map[string]string{"id": "t1"})

		message := receiveMessage(t, c1)
		assert.Equal(t, "task.created", message.Event)
		assert.NotEmpty(t, message.Id)

		receiveMessage(t, c2)
		assertNoMessage(t, c3)
	})

	t.Run("honors exclusions", func(t *testing.T) {
		hub := NewHub(logger)

		c1 := NewConnection("c1", 8)
		c2 := NewConnection("c2", 8)

		hub.Register(c1)
		hub.Register(c2)
		hub.AddToGroup("c1", "p1")
		hub.AddToGroup("c2", "p1")

		hub.SendToGroup("p1", "task.updated", nil, "c1")

		assertNoMessage(t, c1)
		receiveMessage(t, c2)
	})

	t.Run("unknown group is a no-op", func(t *testing.T) {
		hub := NewHub(logger)

		hub.SendToGroup("ghost", "task.created", nil)
	})
}

func TestHub_SendToUser(t *testing.T) {
	logger := zap.NewNop()

	hub := NewHub(logger)

	tab1 := NewConnection("c1", 8)
	tab1.SetAuthentication(authenticated("u1"))
	tab2 := NewConnection("c2", 8)
	tab2.SetAuthentication(authenticated("u1"))
	other := NewConnection("c3", 8)
	other.SetAuthentication(authenticated("u2"))

	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)
	hub.Bind("c1", "u1")
	hub.Bind("c2", "u1")
	hub.Bind("c3", "u2")

	hub.AddToGroup("c1", "p1")
	hub.AddToGroup("c2", "p2")

	hub.SendToUser("u1", "notification.received", map[string]string{"title": "assigned"})

	receiveMessage(t, tab1)
	receiveMessage(t, tab2)
	assertNoMessage(t, other)
}

func TestHub_SendToConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c1 := NewConnection("c1", 8)
	c2 := NewConnection("c2", 8)
	hub.Register(c1)
	hub.Register(c2)

	hub.SendToConnection("c1", "presence.snapshot", []string{})

	receiveMessage(t, c1)
	assertNoMessage(t, c2)

	hub.SendToConnection("ghost", "presence.snapshot", nil)
}

func TestHub_EvictsConnectionWithFullQueue(t *testing.T) {
	hub := NewHub(zap.NewNop())

	slow := NewConnection("c1", 1)
	hub.Register(slow)
	hub.AddToGroup("c1", "p1")

	hub.SendToGroup("p1", "task.created", nil)
	hub.SendToGroup("p1", "task.created", nil)

	select {
	case <-slow.Closed():
	default:
		t.Fatal("expected the stalled connection to be closed")
	}

	// Evicted connections are fully removed: later sends reach nobody and a
	// second unregister is harmless.
	hub.SendToConnection("c1", "task.created", nil)
	hub.Unregister("c1")
}

func TestHub_UnregisterCleansAllIndexes(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c1 := NewConnection("c1", 8)
	c1.SetAuthentication(authenticated("u1"))
	hub.Register(c1)
	hub.Bind("c1", "u1")
	hub.AddToGroup("c1", "p1")

	hub.Unregister("c1")

	hub.SendToGroup("p1", "task.created", nil)
	hub.SendToUser("u1", "task.created", nil)

	select {
	case <-c1.Closed():
	default:
		t.Fatal("expected the connection to be closed")
	}

	assertNoMessage(t, c1)
}

func TestConnection_Enqueue(t *testing.T) {
	t.Run("reports a full queue", func(t *testing.T) {
		connection := NewConnection("c1", 1)

		assert.True(t, connection.Enqueue([]byte("a")))
		assert.False(t, connection.Enqueue([]byte("b")))
	})

	t.Run("rejects frames after close", func(t *testing.T) {
		connection := NewConnection("c1", 8)
		connection.Close()
		connection.Close()

		assert.False(t, connection.Enqueue([]byte("a")))
	})
}

func TestBroadcaster_Selectors(t *testing.T) {
	hub := NewHub(zap.NewNop())
	roomBroadcaster := NewBroadcaster(hub)

	c1 := NewConnection("c1", 8)
	c2 := NewConnection("c2", 8)
	hub.Register(c1)
	hub.Register(c2)
	hub.AddToGroup("c1", "p1")
	hub.AddToGroup("c2", "p1")

	t.Run("ToRoom reaches everyone", func(t *testing.T) {
		message := roomBroadcaster.ToRoom("p1", "comment.added", map[string]string{"id": "k1"})

		received := receiveMessage(t, c1)
		assert.Equal(t, message.Id, received.Id)
		receiveMessage(t, c2)
	})

	t.Run("ToOthersInRoom skips the actor", func(t *testing.T) {
		roomBroadcaster.ToOthersInRoom("p1", "c1", "comment.added", nil)

		assertNoMessage(t, c1)
		receiveMessage(t, c2)
	})

	t.Run("ToConnection targets one peer", func(t *testing.T) {
		roomBroadcaster.ToConnection("c2", "presence.snapshot", nil)

		assertNoMessage(t, c1)
		receiveMessage(t, c2)
	})
}
