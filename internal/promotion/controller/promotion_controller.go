package controller

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/dto"
	apperrors "gigmarket/internal/errors"
	"gigmarket/internal/promotion/service"
)

type PromotionUseCase interface {
	Request(ctx context.Context, userID uint) (*service.RequestReceipt, error)
	Resolve(ctx context.Context, notificationID, adminID uint, outcome domain.Resolution) (*service.Decision, error)
}

type PromotionController struct {
	useCase PromotionUseCase
	logger  *zap.Logger
}

func NewPromotionController(useCase PromotionUseCase, logger *zap.Logger) *PromotionController {
	return &PromotionController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *PromotionController) Request(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	receipt, err := c.useCase.Request(r.Context(), actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("userId", actorID)))
		return
	}

	commons.WriteJSON(w, http.StatusAccepted, dto.PromotionRequestResponse{
		TraceID:    traceID,
		RequestID:  receipt.RequestID,
		UserID:     receipt.UserID,
		Recipients: receipt.Recipients,
	}, logger)
}

func (c *PromotionController) Resolve(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	notificationID, err := commons.URLParamID(r, "notificationId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.ResolvePromotionRequest
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

	decision, err := c.useCase.Resolve(r.Context(), notificationID, actorID, outcome)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("notificationId", notificationID)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.PromotionDecisionResponse{
		TraceID:     traceID,
		RequestID:   decision.RequestID,
		RequesterID: decision.RequesterID,
		Outcome:     string(decision.Outcome),
		Copies:      decision.Copies,
	}, logger)
}
