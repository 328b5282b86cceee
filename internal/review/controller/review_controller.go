package controller

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/dto"
	"gigmarket/internal/review/service"
)

type ReviewUseCase interface {
	CanReview(ctx context.Context, orderID, reviewerID uint) (service.Eligibility, error)
	CreateReview(ctx context.Context, cmd service.CreateReviewCommand) (*domain.Review, error)
	ListForFreelancer(ctx context.Context, freelancerID uint) (*service.FreelancerReviews, error)
}

type ReviewController struct {
	useCase ReviewUseCase
	logger  *zap.Logger
}

func NewReviewController(useCase ReviewUseCase, logger *zap.Logger) *ReviewController {
	return &ReviewController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *ReviewController) Eligibility(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	eligibility, err := c.useCase.CanReview(r.Context(), orderID, actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.ReviewEligibilityResponse{
		TraceID: traceID,
		OrderID: orderID,
		Allowed: eligibility.Allowed,
		Reason:  eligibility.Reason,
	}, logger)
}

func (c *ReviewController) Create(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.CreateReviewRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	review, err := c.useCase.CreateReview(r.Context(), service.CreateReviewCommand{
		OrderID:    orderID,
		ReviewerID: actorID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("orderId", orderID)))
		return
	}

	commons.WriteJSON(w, http.StatusCreated, dto.NewReviewResponse(traceID, *review), logger)
}

func (c *ReviewController) ListForFreelancer(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)

	freelancerID, err := commons.URLParamID(r, "userId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	result, err := c.useCase.ListForFreelancer(r.Context(), freelancerID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.FreelancerReviewsResponse{
		TraceID:       traceID,
		FreelancerID:  result.FreelancerID,
		Count:         len(result.Reviews),
		AverageRating: result.AverageRating,
		Reviews:       dto.NewReviewList(result.Reviews),
	}, logger)
}
