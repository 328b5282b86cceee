package order

import (
	"database/sql"

	"go.uber.org/zap"

	catalogrepo "gigmarket/internal/catalog/repository"
	"gigmarket/internal/infrastructure/metrics"
	"gigmarket/internal/infrastructure/mysql"
	"gigmarket/internal/order/controller"
	orderrepo "gigmarket/internal/order/repository"
	"gigmarket/internal/order/service"
)

func NewModule(db *sql.DB, tx *mysql.Transactor, notifier service.Notifier, m *metrics.Metrics, logger *zap.Logger) *controller.OrderController {
	lifecycle := service.NewLifecycleService(
		tx,
		orderrepo.NewMySQLOrderRepository(db),
		orderrepo.NewMySQLDeliveryRepository(db),
		catalogrepo.NewMySQLServiceRepository(db),
		notifier,
		m,
		logger,
	)
	return controller.NewOrderController(lifecycle, logger)
}
