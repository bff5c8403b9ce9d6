package handler

import (
	"context"
	"errors"

	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
)

// RoomEventRequest carries a domain event (task/comment mutations and the
// like) from an event producer into a project room. The payload is opaque.
type RoomEventRequest struct {
	ProjectId           string `json:"projectId"`
	Event               string `json:"event"`
	Payload             any    `json:"payload"`
	ExcludeConnectionId string `json:"excludeConnectionId,omitempty"`
}

type RoomEventResponse struct {
	Message broadcaster.Message `json:"message"`
}

type RoomEventHandlerInterface interface {
	Handle(ctx context.Context, req RoomEventRequest) (RoomEventResponse, error)
}

type RoomEventHandler struct {
	projectIdValidator *ProjectIdValidator
	roomBroadcaster    *broadcaster.Broadcaster
}

func NewRoomEventHandler(
	projectIdValidator *ProjectIdValidator,
	roomBroadcaster *broadcaster.Broadcaster,
) *RoomEventHandler {
	return &RoomEventHandler{
		projectIdValidator,
		roomBroadcaster,
	}
}

func (h *RoomEventHandler) Handle(ctx context.Context, req RoomEventRequest) (RoomEventResponse, error) {
	err := h.projectIdValidator.Validate(req.ProjectId)
	if err != nil {
		return RoomEventResponse{}, err
	}

	if req.Event == "" {
		return RoomEventResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("event name is required"))
	}

	var message broadcaster.Message
	if req.ExcludeConnectionId != "" {
		message = h.roomBroadcaster.ToOthersInRoom(req.ProjectId, req.ExcludeConnectionId, req.Event, req.Payload)
	} else {
		message = h.roomBroadcaster.ToRoom(req.ProjectId, req.Event, req.Payload)
	}

	return RoomEventResponse{
		Message: message,
	}, nil
}
