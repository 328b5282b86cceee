package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"gigmarket/internal/domain"
)

type CreateOrderRequest struct {
	ServiceID    uint            `json:"serviceId"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	CurrencyCode string          `json:"currencyCode"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type DeliverOrderRequest struct {
	FileURL string `json:"fileUrl"`
	Message string `json:"message"`
}

type OrderResponse struct {
	TraceID      string          `json:"traceId,omitempty"`
	ID           uint            `json:"id"`
	ClientID     uint            `json:"clientId"`
	FreelancerID uint            `json:"freelancerId"`
	ServiceID    *uint           `json:"serviceId"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	CurrencyCode string          `json:"currencyCode"`
	Status       string          `json:"status"`
	OrderedAt    time.Time       `json:"orderedAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type OrderListResponse struct {
	TraceID string          `json:"traceId"`
	Orders  []OrderResponse `json:"orders"`
}

func NewOrderResponse(traceID string, o domain.Order) OrderResponse {
	return OrderResponse{
		TraceID:      traceID,
		ID:           o.ID,
		ClientID:     o.ClientID,
		FreelancerID: o.FreelancerID,
		ServiceID:    o.ServiceID,
		TotalPrice:   o.TotalPrice,
		CurrencyCode: o.CurrencyCode,
		Status:       string(o.Status),
		OrderedAt:    o.OrderedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func NewOrderListResponse(traceID string, orders []domain.Order) OrderListResponse {
	items := make([]OrderResponse, len(orders))
	for i, o := range orders {
		items[i] = NewOrderResponse("", o)
	}
	return OrderListResponse{TraceID: traceID, Orders: items}
}
