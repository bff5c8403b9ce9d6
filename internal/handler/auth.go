package handler

import (
	"context"
	"errors"

	"github.com/taskfolio/realtime/internal/auth"
	"github.com/taskfolio/realtime/internal/broadcaster"
	"github.com/taskfolio/realtime/internal/ierr"
)

type AuthRequest struct {
	Token string `json:"token"`
}

type AuthResponse struct {
	Success bool   `json:"success"`
	UserId  string `json:"userId"`
}

type AuthHandlerInterface interface {
	Handle(ctx context.Context, req AuthRequest) (AuthResponse, error)
}

type AuthHandler struct {
	authenticator *auth.Authenticator
	hub           *broadcaster.Hub
}

func NewAuthHandler(
	authenticator *auth.Authenticator,
	hub *broadcaster.Hub,
) *AuthHandler {
	return &AuthHandler{
		authenticator,
		hub,
	}
}

// Handle validates the client token and binds the connection to the
// authenticated user, enabling user-addressed delivery across rooms.
func (h *AuthHandler) Handle(ctx context.Context, req AuthRequest) (AuthResponse, error) {
	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return AuthResponse{}, errors.New("connection not found in context")
	}

	if connection.UserId() != "" {
		return AuthResponse{}, ierr.New(ierr.ErrorCodeFailedPrecondition, errors.New("connection is already authenticated"))
	}

	authentication, err := h.authenticator.AuthenticateJWT(req.Token)
	if err != nil {
		return AuthResponse{}, err
	}

	connection.SetAuthentication(authentication)
	h.hub.Bind(connection.Id, authentication.Subject)

	return AuthResponse{
		Success: true,
		UserId:  authentication.Subject,
	}, nil
}
