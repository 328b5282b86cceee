package promotion

import (
	"database/sql"

	"go.uber.org/zap"

	"gigmarket/internal/infrastructure/metrics"
	"gigmarket/internal/infrastructure/mysql"
	"gigmarket/internal/promotion/controller"
	"gigmarket/internal/promotion/service"
	userrepo "gigmarket/internal/user/repository"
)

// Module exposes the workflow so the notification inbox can settle
// promotion requests through it.
type Module struct {
	Workflow   *service.Workflow
	Controller *controller.PromotionController
}

func NewModule(db *sql.DB, tx *mysql.Transactor, notifier service.Notifier, m *metrics.Metrics, logger *zap.Logger) *Module {
	workflow := service.NewWorkflow(tx, userrepo.NewMySQLUserRepository(db), notifier, m, logger)
	return &Module{
		Workflow:   workflow,
		Controller: controller.NewPromotionController(workflow, logger),
	}
}
