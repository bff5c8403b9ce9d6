package persistence

import (
	"context"
	"time"
)

// Notification is a direct, user-addressed message stored before it is
// pushed, so a recipient who was offline still finds it on next load.
type Notification struct {
	Id         string    `json:"id"`
	UserId     string    `json:"userId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Link       string    `json:"link"`
	Read       bool      `json:"read"`
	CreateTime time.Time `json:"createTime"`
}

// Activity is one project activity-log entry.
type Activity struct {
	Id         string    `json:"id"`
	ProjectId  string    `json:"projectId"`
	TaskId     string    `json:"taskId,omitempty"`
	UserId     string    `json:"userId"`
	Action     string    `json:"action"`
	Target     string    `json:"target,omitempty"`
	CreateTime time.Time `json:"createTime"`
}

type SaveNotificationRequest struct {
	UserId  string
	Title   string
	Message string
	Type    string
	Link    string
}

type SaveActivityRequest struct {
	ProjectId string
	TaskId    string
	UserId    string
	Action    string
	Target    string
}

type Engine interface {
	Setup(ctx context.Context) error
	SaveNotification(ctx context.Context, request SaveNotificationRequest) (Notification, error)
	SaveActivity(ctx context.Context, request SaveActivityRequest) (Activity, error)
	ListNotifications(ctx context.Context, userId string, limit int64) ([]Notification, error)
}
