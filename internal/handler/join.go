package handler

import (
	"context"
	"errors"
	"time"

	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/presence"
)

type JoinRequest struct {
	ProjectId   string `json:"projectId"`
	DisplayName string `json:"displayName"`
	AvatarUrl   string `json:"avatarUrl"`
}

type JoinResponse struct {
	ProjectId string    `json:"projectId"`
	Timestamp time.Time `json:"timestamp"`
}

type JoinHandlerInterface interface {
	Handle(ctx context.Context, req JoinRequest) (JoinResponse, error)
}

type JoinHandler struct {
	projectIdValidator *ProjectIdValidator
	presenceManager    *presence.Manager
}

func NewJoinHandler(
	projectIdValidator *ProjectIdValidator,
	presenceManager *presence.Manager,
) *JoinHandler {
	return &JoinHandler{
		projectIdValidator,
		presenceManager,
	}
}

// Handle puts the connection into the project room. The user id comes from
// the connection's authentication, never from the request payload. The member
// list reaches the caller as a presence.snapshot event, and the rest of the
// room gets presence.joined.
func (h *JoinHandler) Handle(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	err := h.projectIdValidator.Validate(req.ProjectId)
	if err != nil {
		return JoinResponse{}, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return JoinResponse{}, errors.New("connection not found in context")
	}

	authentication := connection.Authentication()
	if authentication == nil {
		return JoinResponse{}, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("authentication required"))
	}

	if !connection.IsAuthorized(req.ProjectId) {
		return JoinResponse{}, ierr.New(ierr.ErrorCodePermissionDenied, errors.New("user not authorized to access this project"))
	}

	err = h.presenceManager.Join(connection.Id, authentication.Subject, req.ProjectId, req.DisplayName, req.AvatarUrl)
	if err != nil {
		return JoinResponse{}, err
	}

	return JoinResponse{
		ProjectId: req.ProjectId,
		Timestamp: time.Now(),
	}, nil
}
