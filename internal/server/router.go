package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"gigmarket/internal/commons"
	notificationctl "gigmarket/internal/notification/controller"
	orderctl "gigmarket/internal/order/controller"
	promotionctl "gigmarket/internal/promotion/controller"
	reviewctl "gigmarket/internal/review/controller"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Controllers struct {
	Orders        *orderctl.OrderController
	Reviews       *reviewctl.ReviewController
	Notifications *notificationctl.NotificationController
	Promotions    *promotionctl.PromotionController
}

// NewRouter mounts every feature behind RequireActor. Health and metrics are
// open. metricsHandler may be nil.
func NewRouter(c Controllers, db Pinger, metricsPath string, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", healthz(db, logger))
	if metricsHandler != nil {
		r.Handle(metricsPath, metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(commons.RequireActor)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", c.Orders.Create)
			r.Get("/", c.Orders.List)
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", c.Orders.Get)
				r.Delete("/", c.Orders.Cancel)
				r.Post("/accept", c.Orders.Accept)
				r.Patch("/status", c.Orders.UpdateStatus)
				r.Post("/delivery", c.Orders.Deliver)
				r.Get("/review-eligibility", c.Reviews.Eligibility)
				r.Post("/reviews", c.Reviews.Create)
			})
		})

		r.Get("/freelancers/{userId}/reviews", c.Reviews.ListForFreelancer)

		r.Post("/promotions", c.Promotions.Request)
		r.Post("/promotions/{notificationId}/resolve", c.Promotions.Resolve)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", c.Notifications.List)
			r.Get("/unread-count", c.Notifications.UnreadCount)
			r.Post("/{notificationId}/read", c.Notifications.MarkRead)
			r.Post("/{notificationId}/resolve", c.Notifications.Resolve)
			r.Get("/{notificationId}/history", c.Notifications.History)
		})
	})

	return r
}

func healthz(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			commons.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}, logger)
			return
		}
		commons.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
