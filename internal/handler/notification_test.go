package handler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/persistence/memory"
	"github.com/taskfolio/realtime/internal/rpc"
	"go.uber.org/zap"
)

func receiveEvent(t *testing.T, connection *broadcaster.Connection) broadcaster.Message {
	t.Helper()

	select {
	case frame := <-connection.Outbound():
		var request rpc.Request
		require.NoError(t, json.Unmarshal(frame, &request))
		require.Equal(t, "event", request.Method)

		var message broadcaster.Message
		require.NoError(t, json.Unmarshal(*request.Params, &message))

		return message
	default:
		t.Fatal("expected a queued frame")

		return broadcaster.Message{}
	}
}

func TestNotificationHandler(t *testing.T) {
	t.Run("stores then pushes to every connection of the user", func(t *testing.T) {
		hub := broadcaster.NewHub(zap.NewNop())
		engine := memory.NewEngine()
		notificationHandler := NewNotificationHandler(engine, broadcaster.NewBroadcaster(hub))

		tab1 := broadcaster.NewConnection("c1", 8)
		tab2 := broadcaster.NewConnection("c2", 8)
		hub.Register(tab1)
		hub.Register(tab2)
		hub.Bind("c1", "u1")
		hub.Bind("c2", "u1")

		notification, err := notificationHandler.Handle(context.Background(), NotificationRequest{
			UserId:  "u1",
			Title:   "Task assigned",
			Message: "You were assigned 'Ship it'",
			Type:    "INFO",
			Link:    "/projects/p1/tasks/t1",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, notification.Id)
		assert.False(t, notification.Read)

		for _, tab := range []*broadcaster.Connection{tab1, tab2} {
			message := receiveEvent(t, tab)
			assert.Equal(t, EventNotificationReceived, message.Event)
		}

		stored, err := engine.ListNotifications(context.Background(), "u1", 10)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "Task assigned", stored[0].Title)
	})

	t.Run("rejects a missing recipient", func(t *testing.T) {
		hub := broadcaster.NewHub(zap.NewNop())
		notificationHandler := NewNotificationHandler(memory.NewEngine(), broadcaster.NewBroadcaster(hub))

		_, err := notificationHandler.Handle(context.Background(), NotificationRequest{Title: "Task assigned"})

		var handlerErr ierr.Error
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, handlerErr.Code)
	})
}

func TestActivityHandler(t *testing.T) {
	hub := broadcaster.NewHub(zap.NewNop())
	engine := memory.NewEngine()
	activityHandler := NewActivityHandler(NewProjectIdValidator(), engine, broadcaster.NewBroadcaster(hub))

	viewer := broadcaster.NewConnection("c1", 8)
	outsider := broadcaster.NewConnection("c2", 8)
	hub.Register(viewer)
	hub.Register(outsider)
	hub.AddToGroup("c1", "p1")
	hub.AddToGroup("c2", "p2")

	activity, err := activityHandler.Handle(context.Background(), ActivityRequest{
		ProjectId: "p1",
		TaskId:    "t1",
		UserId:    "u1",
		Action:    "task.status.changed",
		Target:    "Ship it",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, activity.Id)

	message := receiveEvent(t, viewer)
	assert.Equal(t, EventActivityAdded, message.Event)

	select {
	case <-outsider.Outbound():
		t.Fatal("activity leaked to another project's room")
	default:
	}
}

func TestRoomEventHandler(t *testing.T) {
	hub := broadcaster.NewHub(zap.NewNop())
	roomEventHandler := NewRoomEventHandler(NewProjectIdValidator(), broadcaster.NewBroadcaster(hub))

	actor := broadcaster.NewConnection("c1", 8)
	peer := broadcaster.NewConnection("c2", 8)
	hub.Register(actor)
	hub.Register(peer)
	hub.AddToGroup("c1", "p1")
	hub.AddToGroup("c2", "p1")

	t.Run("fans out an opaque payload to the room", func(t *testing.T) {
		response, err := roomEventHandler.Handle(context.Background(), RoomEventRequest{
			ProjectId: "p1",
			Event:     "task.created",
			Payload:   map[string]any{"id": "t1", "title": "Ship it"},
		})

		require.NoError(t, err)
		assert.Equal(t, "task.created", response.Message.Event)

		message := receiveEvent(t, actor)
		assert.Equal(t, response.Message.Id, message.Id)
		receiveEvent(t, peer)
	})

	t.Run("excludes the acting connection when asked", func(t *testing.T) {
		_, err := roomEventHandler.Handle(context.Background(), RoomEventRequest{
			ProjectId:           "p1",
			Event:               "comment.added",
			ExcludeConnectionId: "c1",
		})

		require.NoError(t, err)

		select {
		case <-actor.Outbound():
			t.Fatal("event reached the excluded connection")
		default:
		}

		receiveEvent(t, peer)
	})

	t.Run("requires an event name", func(t *testing.T) {
		_, err := roomEventHandler.Handle(context.Background(), RoomEventRequest{ProjectId: "p1"})

		var handlerErr ierr.Error
		require.ErrorAs(t, err, &handlerErr)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, handlerErr.Code)
	})
}
