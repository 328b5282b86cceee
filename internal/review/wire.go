package review

import (
	"database/sql"

	"go.uber.org/zap"

	"gigmarket/internal/infrastructure/metrics"
	"gigmarket/internal/infrastructure/mysql"
	orderrepo "gigmarket/internal/order/repository"
	"gigmarket/internal/review/controller"
	reviewrepo "gigmarket/internal/review/repository"
	"gigmarket/internal/review/service"
)

func NewModule(db *sql.DB, tx *mysql.Transactor, notifier service.Notifier, m *metrics.Metrics, logger *zap.Logger) *controller.ReviewController {
	gate := service.NewReviewGate(
		tx,
		orderrepo.NewMySQLOrderRepository(db),
		reviewrepo.NewMySQLReviewRepository(db),
		notifier,
		m,
		logger,
	)
	return controller.NewReviewController(gate, logger)
}
