package handler

import (
	"context"
	"errors"

	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/persistence"
)

const EventNotificationReceived = "notification.received"

type NotificationRequest struct {
	UserId  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Link    string `json:"link,omitempty"`
}

type NotificationHandlerInterface interface {
	Handle(ctx context.Context, req NotificationRequest) (persistence.Notification, error)
	List(ctx context.Context, userId string, limit int64) ([]persistence.Notification, error)
}

type NotificationHandler struct {
	persistenceEngine persistence.Engine
	roomBroadcaster   *broadcaster.Broadcaster
}

func NewNotificationHandler(
	persistenceEngine persistence.Engine,
	roomBroadcaster *broadcaster.Broadcaster,
) *NotificationHandler {
	return &NotificationHandler{
		persistenceEngine,
		roomBroadcaster,
	}
}

// Handle stores the notification and then pushes it to every connection of
// the recipient, across rooms. The store happens first so a recipient who is
// offline still finds the notification on next load.
func (h *NotificationHandler) Handle(ctx context.Context, req NotificationRequest) (persistence.Notification, error) {
	if req.UserId == "" {
		return persistence.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId is required"))
	}

	if req.Title == "" {
		return persistence.Notification{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("title is required"))
	}

	notification, err := h.persistenceEngine.SaveNotification(ctx, persistence.SaveNotificationRequest{
		UserId:  req.UserId,
		Title:   req.Title,
		Message: req.Message,
		Type:    req.Type,
		Link:    req.Link,
	})
	if err != nil {
		return persistence.Notification{}, err
	}

	h.roomBroadcaster.ToUser(req.UserId, EventNotificationReceived, notification)

	return notification, nil
}

func (h *NotificationHandler) List(ctx context.Context, userId string, limit int64) ([]persistence.Notification, error) {
	if userId == "" {
		return nil, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId is required"))
	}

	return h.persistenceEngine.ListNotifications(ctx, userId, limit)
}
