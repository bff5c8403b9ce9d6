package mongodb

import (
	"context"
	"time"

	"github.com/taskfolio/realtime/internal/persistence"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type notificationDocument struct {
	Id         bson.ObjectID `bson:"_id,omitempty"`
	UserId     string        `bson:"userId"`
	Title      string        `bson:"title"`
	Message    string        `bson:"message"`
	Type       string        `bson:"type"`
	Link       string        `bson:"link"`
	Read       bool          `bson:"read"`
	CreateTime time.Time     `bson:"createTime"`
}

type activityDocument struct {
	Id         bson.ObjectID `bson:"_id,omitempty"`
	ProjectId  string        `bson:"projectId"`
	TaskId     string        `bson:"taskId,omitempty"`
	UserId     string        `bson:"userId"`
	Action     string        `bson:"action"`
	Target     string        `bson:"target,omitempty"`
	CreateTime time.Time     `bson:"createTime"`
}

type Engine struct {
	notifications *mongo.Collection
	activities    *mongo.Collection
}

func NewEngine(client *mongo.Client) *Engine {
	database := client.Database("realtime")

	return &Engine{
		notifications: database.Collection("notifications"),
		activities:    database.Collection("activities"),
	}
}

func (e *Engine) Setup(ctx context.Context) error {
	userIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "_id", Value: -1},
		},
	}

	_, err := e.notifications.Indexes().CreateOne(ctx, userIndexModel)
	if err != nil {
		return err
	}

	ttlIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "createTime", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(30 * 24 * 60 * 60),
	}

	projectIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "projectId", Value: 1},
			{Key: "_id", Value: -1},
		},
	}

	_, err = e.activities.Indexes().CreateMany(ctx, []mongo.IndexModel{ttlIndexModel, projectIndexModel})

	return err
}

func (e *Engine) SaveNotification(ctx context.Context, request persistence.SaveNotificationRequest) (persistence.Notification, error) {
	createTime := time.Now()

	result, err := e.notifications.InsertOne(ctx, notificationDocument{
		UserId:     request.UserId,
		Title:      request.Title,
		Message:    request.Message,
		Type:       request.Type,
		Link:       request.Link,
		Read:       false,
		CreateTime: createTime,
	})
	if err != nil {
		return persistence.Notification{}, err
	}

	return persistence.Notification{
		Id:         result.InsertedID.(bson.ObjectID).Hex(),
		UserId:     request.UserId,
		Title:      request.Title,
		Message:    request.Message,
		Type:       request.Type,
		Link:       request.Link,
		Read:       false,
		CreateTime: createTime,
	}, nil
}

func (e *Engine) SaveActivity(ctx context.Context, request persistence.SaveActivityRequest) (persistence.Activity, error) {
	createTime := time.Now()

	result, err := e.activities.InsertOne(ctx, activityDocument{
		ProjectId:  request.ProjectId,
		TaskId:     request.TaskId,
		UserId:     request.UserId,
		Action:     request.Action,
		Target:     request.Target,
		CreateTime: createTime,
	})
	if err != nil {
		return persistence.Activity{}, err
	}

	return persistence.Activity{
		Id:         result.InsertedID.(bson.ObjectID).Hex(),
		ProjectId:  request.ProjectId,
		TaskId:     request.TaskId,
		UserId:     request.UserId,
		Action:     request.Action,
		Target:     request.Target,
		CreateTime: createTime,
	}, nil
}

func (e *Engine) ListNotifications(ctx context.Context, userId string, limit int64) ([]persistence.Notification, error) {
	filter := bson.M{"userId": userId}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(limit)

	result, err := e.notifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var documents []notificationDocument
	err = result.All(ctx, &documents)
	if err != nil {
		return nil, err
	}

	notifications := make([]persistence.Notification, len(documents))
	for i, document := range documents {
		notifications[i] = persistence.Notification{
			Id:         document.Id.Hex(),
			UserId:     document.UserId,
			Title:      document.Title,
			Message:    document.Message,
			Type:       document.Type,
			Link:       document.Link,
			Read:       document.Read,
			CreateTime: document.CreateTime,
		}
	}

	return notifications, nil
}
