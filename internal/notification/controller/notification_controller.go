package controller

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/dto"
	apperrors "gigmarket/internal/errors"
)

type InboxUseCase interface {
	List(ctx context.Context, userID uint) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID uint) (int, error)
	MarkRead(ctx context.Context, notificationID, userID uint) (*domain.Notification, error)
	Resolve(ctx context.Context, notificationID, userID uint, outcome domain.Resolution) (*domain.Notification, error)
	History(ctx context.Context, notificationID, userID uint) ([]domain.NotificationHistory, error)
}

type NotificationController struct {
	useCase InboxUseCase
	logger  *zap.Logger
}

func NewNotificationController(useCase InboxUseCase, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	notifications, err := c.useCase.List(r.Context(), actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewNotificationListResponse(traceID, notifications), logger)
}

func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	count, err := c.useCase.UnreadCount(r.Context(), actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.UnreadCountResponse{TraceID: traceID, Unread: count}, logger)
}

func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	id, err := commons.URLParamID(r, "notificationId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	n, err := c.useCase.MarkRead(r.Context(), id, actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("notificationId", id)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewNotificationResponse(traceID, *n), logger)
}

// Resolve settles a pending notification. For an admin's copy of a
// promotion request this also promotes or turns down the requester.
func (c *NotificationController) Resolve(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	id, err := commons.URLParamID(r, "notificationId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.ResolveNotificationRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	outcome, ok := domain.ParseResolution(req.Outcome)
	if !ok {
		commons.WriteError(w, traceID, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "outcome",
			Message: "outcome must be accepted or rejected",
		}), logger)
		return
	}

	n, err := c.useCase.Resolve(r.Context(), id, actorID, outcome)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("notificationId", id)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewNotificationResponse(traceID, *n), logger)
}

func (c *NotificationController) History(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	id, err := commons.URLParamID(r, "notificationId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	history, err := c.useCase.History(r.Context(), id, actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("notificationId", id)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewNotificationHistoryResponse(traceID, id, history), logger)
}
