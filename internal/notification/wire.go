package notification

import (
	"database/sql"

	"go.uber.org/zap"

	"gigmarket/internal/infrastructure/metrics"
	"gigmarket/internal/infrastructure/mysql"
	"gigmarket/internal/notification/controller"
	"gigmarket/internal/notification/repository"
	"gigmarket/internal/notification/service"
)

// Module exposes the dispatcher so the other features can write
// notifications inside their own transactions.
type Module struct {
	Dispatcher *service.Dispatcher
	Controller *controller.NotificationController
}

func NewModule(db *sql.DB, tx *mysql.Transactor, publisher service.EventPublisher, m *metrics.Metrics, logger *zap.Logger) *Module {
	repo := repository.NewMySQLNotificationRepository(db)
	dispatcher := service.NewDispatcher(tx, repo, publisher, m, logger)
	return &Module{
		Dispatcher: dispatcher,
		Controller: controller.NewNotificationController(dispatcher, logger),
	}
}
