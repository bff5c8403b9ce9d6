package handler

import (
	"context"
	"errors"

	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/presence"
)

type LeaveRequest struct {
	ProjectId string `json:"projectId"`
}

type LeaveResponse struct {
	Success bool `json:"success"`
}

type LeaveHandlerInterface interface {
	Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error)
}

type LeaveHandler struct {
	projectIdValidator *ProjectIdValidator
	presenceManager    *presence.Manager
}

func NewLeaveHandler(
	projectIdValidator *ProjectIdValidator,
	presenceManager *presence.Manager,
) *LeaveHandler {
	return &LeaveHandler{
		projectIdValidator,
		presenceManager,
	}
}

func (h *LeaveHandler) Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error) {
	err := h.projectIdValidator.Validate(req.ProjectId)
	if err != nil {
		return LeaveResponse{}, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return LeaveResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("connection info not available"))
	}

	h.presenceManager.Leave(connection.Id, req.ProjectId)

	return LeaveResponse{
		Success: true,
	}, nil
}
