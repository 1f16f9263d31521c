package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/uprl/internal/config"
	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres targets are for local development. AutoMigrate
		// keeps the schema in step without a driver-specific DDL set.
		return conn.AutoMigrate(
			&pricingdomain.PricingComponentFact{},
			&paymentdomain.PaymentTimelineFact{},
			&supplierdomain.SupplierTimelineFact{},
			&supplierdomain.SupplierPayableLine{},
			&refunddomain.RefundTimelineFact{},
			&dlqdomain.Entry{},
		)
	}),
)
