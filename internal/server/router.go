package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/taskfolio/realtime/internal/handler"
	"github.com/taskfolio/realtime/internal/ierr"
	"github.com/taskfolio/realtime/internal/rpc"
	"go.uber.org/zap"
)

type Router struct {
	logger *zap.Logger

	heartbeatHandler handler.HeartbeatHandlerInterface
	authHandler      handler.AuthHandlerInterface
	joinHandler      handler.JoinHandlerInterface
	leaveHandler     handler.LeaveHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	authHandler handler.AuthHandlerInterface,
	joinHandler handler.JoinHandlerInterface,
	leaveHandler handler.LeaveHandlerInterface,
) *Router {
	return &Router{
		logger,
		heartbeatHandler,
		authHandler,
		joinHandler,
		leaveHandler,
	}
}

func (r *Router) RouteRequest(ctx context.Context, request rpc.Request) *rpc.Response {
	response, err := r.handle(ctx, request)
	if err != nil {
		response := request.ReplyWithError(r.mapError(err))

		return &response
	}

	hasResponse := response != nil

	if request.ReplyExpected() && !hasResponse {
		r.logger.Error("handler did not return a response but one was expected", zap.String("method", request.Method))

		response := request.ReplyWithError(
			ierr.New(ierr.ErrorCodeInternal, errors.New("internal error")),
		)

		return &response
	}

	if !request.ReplyExpected() && hasResponse {
		r.logger.Error("handler returned a response but none was expected", zap.String("method", request.Method))

		return nil
	}

	if hasResponse {
		rawJson, err := json.Marshal(response)
		if err != nil {
			response := request.ReplyWithError(r.mapError(err))

			return &response
		}

		payload := json.RawMessage(rawJson)
		response := request.Reply(&payload)

		return &response
	}

	return nil
}

func (r *Router) handle(ctx context.Context, request rpc.Request) (any, error) {
	switch request.Method {
	case "heartbeat":
		return r.heartbeatHandler.Handle(), nil
	case "auth":
		var authReq handler.AuthRequest
		if err := decodeParams(request.Params, &authReq); err != nil {
			return nil, err
		}

		return r.authHandler.Handle(ctx, authReq)
	case "join":
		var joinReq handler.JoinRequest
		if err := decodeParams(request.Params, &joinReq); err != nil {
			return nil, err
		}

		return r.joinHandler.Handle(ctx, joinReq)
	case "leave":
		var leaveReq handler.LeaveRequest
		if err := decodeParams(request.Params, &leaveReq); err != nil {
			return nil, err
		}

		return r.leaveHandler.Handle(ctx, leaveReq)
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("method not found: "+request.Method))
	}
}

func (r *Router) mapError(err error) ierr.Error {
	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	r.logger.Error("error in handler", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
}

func decodeParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(*params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}
