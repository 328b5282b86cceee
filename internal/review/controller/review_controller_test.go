package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gigmarket/internal/commons"
	"gigmarket/internal/domain"
	"gigmarket/internal/dto"
	apperrors "gigmarket/internal/errors"
	"gigmarket/internal/review/service"
)

type mockReviewUseCase struct {
	CanReviewFunc         func(ctx context.Context, orderID, reviewerID uint) (service.Eligibility, error)
	CreateReviewFunc      func(ctx context.Context, cmd service.CreateReviewCommand) (*domain.Review, error)
	ListForFreelancerFunc func(ctx context.Context, freelancerID uint) (*service.FreelancerReviews, error)
}

func (m *mockReviewUseCase) CanReview(ctx context.Context, orderID, reviewerID uint) (service.Eligibility, error) {
	return m.CanReviewFunc(ctx, orderID, reviewerID)
}

func (m *mockReviewUseCase) CreateReview(ctx context.Context, cmd service.CreateReviewCommand) (*domain.Review, error) {
	return m.CreateReviewFunc(ctx, cmd)
}

func (m *mockReviewUseCase) ListForFreelancer(ctx context.Context, freelancerID uint) (*service.FreelancerReviews, error) {
	return m.ListForFreelancerFunc(ctx, freelancerID)
}

func newTestRouter(uc ReviewUseCase) http.Handler {
	c := NewReviewController(uc, zap.NewNop())
	r := chi.NewRouter()
	r.Use(commons.RequireActor)
	r.Get("/orders/{orderId}/review-eligibility", c.Eligibility)
	r.Post("/orders/{orderId}/reviews", c.Create)
	r.Get("/freelancers/{userId}/reviews", c.ListForFreelancer)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(commons.UserIDHeader, "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEligibility(t *testing.T) {
	uc := &mockReviewUseCase{
		CanReviewFunc: func(ctx context.Context, orderID, reviewerID uint) (service.Eligibility, error) {
			return service.Eligibility{Reason: "order has not been delivered yet"}, nil
		},
	}

	rec := serve(newTestRouter(uc), http.MethodGet, "/orders/7/review-eligibility", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.ReviewEligibilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Allowed)
	assert.Equal(t, uint(7), body.OrderID)
	assert.Equal(t, "order has not been delivered yet", body.Reason)
}

func TestCreate(t *testing.T) {
	var got service.CreateReviewCommand
	uc := &mockReviewUseCase{
		CreateReviewFunc: func(ctx context.Context, cmd service.CreateReviewCommand) (*domain.Review, error) {
			got = cmd
			return &domain.Review{ID: 4, OrderID: cmd.OrderID, ReviewerID: cmd.ReviewerID, Rating: cmd.Rating, Comment: cmd.Comment}, nil
		},
	}

	rec := serve(newTestRouter(uc), http.MethodPost, "/orders/7/reviews", `{"rating":5,"comment":"great"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.CreateReviewCommand{OrderID: 7, ReviewerID: 1, Rating: 5, Comment: "great"}, got)
}

func TestCreate_AlreadyReviewed(t *testing.T) {
	uc := &mockReviewUseCase{
		CreateReviewFunc: func(ctx context.Context, cmd service.CreateReviewCommand) (*domain.Review, error) {
			return nil, apperrors.NewInvalidOperationError("order already reviewed")
		},
	}

	rec := serve(newTestRouter(uc), http.MethodPost, "/orders/7/reviews", `{"rating":5,"comment":"again"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body commons.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "order already reviewed", body.Message)
}

func TestListForFreelancer(t *testing.T) {
	uc := &mockReviewUseCase{
		ListForFreelancerFunc: func(ctx context.Context, freelancerID uint) (*service.FreelancerReviews, error) {
			return &service.FreelancerReviews{
				FreelancerID:  freelancerID,
				Reviews:       []domain.Review{{ID: 1, Rating: 4}, {ID: 2, Rating: 5}},
				AverageRating: decimal.RequireFromString("4.5"),
			}, nil
		},
	}

	rec := serve(newTestRouter(uc), http.MethodGet, "/freelancers/2/reviews", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body dto.FreelancerReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint(2), body.FreelancerID)
	assert.Equal(t, 2, body.Count)
	assert.True(t, body.AverageRating.Equal(decimal.RequireFromString("4.5")))
}
