package controller

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/dto"
	apperrors "gigmarket/internal/errors"
	"gigmarket/internal/order/service"
)

type LifecycleUseCase interface {
	Create(ctx context.Context, cmd service.CreateOrderCommand) (*domain.Order, error)
	Accept(ctx context.Context, orderID, freelancerID uint) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID, actorID uint, newStatus domain.OrderStatus) (*domain.Order, error)
	Deliver(ctx context.Context, cmd service.DeliverOrderCommand) (*domain.Order, error)
	Cancel(ctx context.Context, orderID, actorID uint) error
	Get(ctx context.Context, orderID, actorID uint) (*domain.Order, error)
	ListForUser(ctx context.Context, userID uint) ([]domain.Order, error)
}

type OrderController struct {
	useCase LifecycleUseCase
	logger  *zap.Logger
}

func NewOrderController(useCase LifecycleUseCase, logger *zap.Logger) *OrderController {
	return &OrderController{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	var req dto.CreateOrderRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	order, err := c.useCase.Create(r.Context(), service.CreateOrderCommand{
		ClientID:     actorID,
		ServiceID:    req.ServiceID,
		TotalPrice:   req.TotalPrice,
		CurrencyCode: req.CurrencyCode,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusCreated, dto.NewOrderResponse(traceID, *order), logger)
}

func (c *OrderController) List(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orders, err := c.useCase.ListForUser(r.Context(), actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderListResponse(traceID, orders), logger)
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	order, err := c.useCase.Get(r.Context(), orderID, actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(traceID, *order), logger)
}

func (c *OrderController) Accept(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	order, err := c.useCase.Accept(r.Context(), orderID, actorID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("orderId", orderID)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(traceID, *order), logger)
}

func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	status, ok := domain.ParseOrderStatus(strings.TrimSpace(req.Status))
	if !ok {
		commons.WriteError(w, traceID, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "status",
			Message: "status must be one of pending, in_progress, delivered, completed, cancelled",
		}), logger)
		return
	}

	order, err := c.useCase.UpdateStatus(r.Context(), orderID, actorID, status)
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("orderId", orderID)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(traceID, *order), logger)
}

func (c *OrderController) Deliver(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	var req dto.DeliverOrderRequest
	if err := commons.DecodeJSON(r, &req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	order, err := c.useCase.Deliver(r.Context(), service.DeliverOrderCommand{
		OrderID:      orderID,
		FreelancerID: actorID,
		FileURL:      req.FileURL,
		Message:      req.Message,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("orderId", orderID)))
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(traceID, *order), logger)
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.TraceLogger(c.logger)
	actorID, _ := commons.ActorFrom(r.Context())

	orderID, err := commons.URLParamID(r, "orderId")
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	if err := c.useCase.Cancel(r.Context(), orderID, actorID); err != nil {
		commons.WriteError(w, traceID, err, logger.With(zap.Uint("orderId", orderID)))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
