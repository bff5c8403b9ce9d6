package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/taskfolio/realtime/internal/auth"
	"github.com/taskfolio/realtime/internal/handler"
	"github.com/taskfolio/realtime/internal/ierr"
	"go.uber.org/zap"
)

// RESTServer is the surface the CRUD backend and internal services call
// after a successful mutation: room-addressed domain events, direct
// notifications, and activity-log entries. Callers authenticate with an API
// key; these endpoints are never exposed to browsers.
type RESTServer struct {
	logger        *zap.Logger
	authenticator *auth.Authenticator

	roomEventHandler    handler.RoomEventHandlerInterface
	notificationHandler handler.NotificationHandlerInterface
	activityHandler     handler.ActivityHandlerInterface
}

func NewRESTServer(
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	roomEventHandler handler.RoomEventHandlerInterface,
	notificationHandler handler.NotificationHandlerInterface,
	activityHandler handler.ActivityHandlerInterface,
) *RESTServer {
	return &RESTServer{
		logger,
		authenticator,
		roomEventHandler,
		notificationHandler,
		activityHandler,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/events/room", s.authenticated(s.handleRoomEvent)).Methods("POST")
	router.HandleFunc("/notifications", s.authenticated(s.handleNotification)).Methods("POST")
	router.HandleFunc("/notifications/{userId}", s.authenticated(s.handleListNotifications)).Methods("GET")
	router.HandleFunc("/activities", s.authenticated(s.handleActivity)).Methods("POST")
}

func (s *RESTServer) handleRoomEvent(w http.ResponseWriter, r *http.Request) {
	var request handler.RoomEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body")))

		return
	}

	response, err := s.roomEventHandler.Handle(r.Context(), request)
	if err != nil {
		s.writeHandlerError(w, "room event", err)

		return
	}

	s.writeJSON(w, response)
}

func (s *RESTServer) handleNotification(w http.ResponseWriter, r *http.Request) {
	var request handler.NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body")))

		return
	}

	notification, err := s.notificationHandler.Handle(r.Context(), request)
	if err != nil {
		s.writeHandlerError(w, "notification", err)

		return
	}

	s.writeJSON(w, notification)
}

func (s *RESTServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["userId"]

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 200 {
			s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid limit")))

			return
		}

		limit = parsed
	}

	notifications, err := s.notificationHandler.List(r.Context(), userId, limit)
	if err != nil {
		s.writeHandlerError(w, "list notifications", err)

		return
	}

	s.writeJSON(w, notifications)
}

func (s *RESTServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	var request handler.ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid request body")))

		return
	}

	activity, err := s.activityHandler.Handle(r.Context(), request)
	if err != nil {
		s.writeHandlerError(w, "activity", err)

		return
	}

	s.writeJSON(w, activity)
}

func (s *RESTServer) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := bearerToken(r)
		if !ok {
			s.writeError(w, ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("missing api key")))

			return
		}

		if _, err := s.authenticator.AuthenticateAPIKey(apiKey); err != nil {
			s.writeHandlerError(w, "authentication", err)

			return
		}

		next(w, r)
	}
}

func (s *RESTServer) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *RESTServer) writeHandlerError(w http.ResponseWriter, operation string, err error) {
	var handlerErr ierr.Error
	if !errors.As(err, &handlerErr) {
		s.logger.Error("failed to handle request",
			zap.String("operation", operation),
			zap.Error(err))

		handlerErr = ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
	}

	s.writeError(w, handlerErr)
}

func (s *RESTServer) writeError(w http.ResponseWriter, err ierr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(err.Code))

	json.NewEncoder(w).Encode(err)
}

func statusForCode(code ierr.ErrorCode) int {
	switch code {
	case ierr.ErrorCodeInvalidArgument:
		return http.StatusBadRequest
	case ierr.ErrorCodeNotFound:
		return http.StatusNotFound
	case ierr.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case ierr.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ierr.ErrorCodeFailedPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}

	return token, true
}
