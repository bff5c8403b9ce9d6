package handler

import (
	"context"
	"errors"

	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/persistence"
)

const EventActivityAdded = "activity.added"

type ActivityRequest struct {
	ProjectId string `json:"projectId"`
	TaskId    string `json:"taskId,omitempty"`
	UserId    string `json:"userId"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
}

type ActivityHandlerInterface interface {
	Handle(ctx context.Context, req ActivityRequest) (persistence.Activity, error)
}

type ActivityHandler struct {
	projectIdValidator *ProjectIdValidator
	persistenceEngine  persistence.Engine
	roomBroadcaster    *broadcaster.Broadcaster
}

func NewActivityHandler(
	projectIdValidator *ProjectIdValidator,
	persistenceEngine persistence.Engine,
	roomBroadcaster *broadcaster.Broadcaster,
) *ActivityHandler {
	return &ActivityHandler{
		projectIdValidator,
		persistenceEngine,
		roomBroadcaster,
	}
}

// Handle records an activity-log entry and fans it out to the project room.
func (h *ActivityHandler) Handle(ctx context.Context, req ActivityRequest) (persistence.Activity, error) {
	err := h.projectIdValidator.Validate(req.ProjectId)
	if err != nil {
		return persistence.Activity{}, err
	}

	if req.Action == "" {
		return persistence.Activity{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("action is required"))
	}

	activity, err := h.persistenceEngine.SaveActivity(ctx, persistence.SaveActivityRequest{
		ProjectId: req.ProjectId,
		TaskId:    req.TaskId,
		UserId:    req.UserId,
		Action:    req.Action,
		Target:    req.Target,
	})
	if err != nil {
		return persistence.Activity{}, err
	}

	h.roomBroadcaster.ToRoom(req.ProjectId, EventActivityAdded, activity)

	return activity, nil
}
