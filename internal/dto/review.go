package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"gigmarket/internal/domain"
)

type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewResponse struct {
	TraceID    string    `json:"traceId,omitempty"`
	ID         uint      `json:"id"`
	OrderID    uint      `json:"orderId"`
	ReviewerID uint      `json:"reviewerId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReviewEligibilityResponse struct {
	TraceID string `json:"traceId"`
	OrderID uint   `json:"orderId"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type FreelancerReviewsResponse struct {
	TraceID       string           `json:"traceId"`
	FreelancerID  uint             `json:"freelancerId"`
	Count         int              `json:"count"`
	AverageRating decimal.Decimal  `json:"averageRating"`
	Reviews       []ReviewResponse `json:"reviews"`
}

func NewReviewResponse(traceID string, r domain.Review) ReviewResponse {
	return ReviewResponse{
		TraceID:    traceID,
		ID:         r.ID,
		OrderID:    r.OrderID,
		ReviewerID: r.ReviewerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

func NewReviewList(reviews []domain.Review) []ReviewResponse {
	items := make([]ReviewResponse, len(reviews))
	for i, r := range reviews {
		items[i] = NewReviewResponse("", r)
	}
	return items
}
