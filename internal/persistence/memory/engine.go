package memory

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/taskfolio/realtime/internal/persistence"
)

// Engine keeps notifications and activities in process memory. Used in tests
// and when the service runs without a configured MongoDB.
type Engine struct {
	mu            sync.Mutex
	notifications []persistence.Notification
	activities    []persistence.Activity
}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Setup(ctx context.Context) error {
	return nil
}

func (e *Engine) SaveNotification(ctx context.Context, request persistence.SaveNotificationRequest) (persistence.Notification, error) {
	notification := persistence.Notification{
		Id:         gonanoid.Must(),
		UserId:     request.UserId,
		Title:      request.Title,
		Message:    request.Message,
		Type:       request.Type,
		Link:       request.Link,
		Read:       false,
		CreateTime: time.Now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifications = append(e.notifications, notification)

	return notification, nil
}

func (e *Engine) SaveActivity(ctx context.Context, request persistence.SaveActivityRequest) (persistence.Activity, error) {
	activity := persistence.Activity{
		Id:         gonanoid.Must(),
		ProjectId:  request.ProjectId,
		TaskId:     request.TaskId,
		UserId:     request.UserId,
		Action:     request.Action,
		Target:     request.Target,
		CreateTime: time.Now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.activities = append(e.activities, activity)

	return activity, nil
}

func (e *Engine) ListNotifications(ctx context.Context, userId string, limit int64) ([]persistence.Notification, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var notifications []persistence.Notification
	for i := len(e.notifications) - 1; i >= 0 && int64(len(notifications)) < limit; i-- {
		if e.notifications[i].UserId == userId {
			notifications = append(notifications, e.notifications[i])
		}
	}

	return notifications, nil
}
