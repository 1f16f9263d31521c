package db

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/uprl/internal/config"
	obslogger "github.com/smallbiznis/uprl/internal/observability/logger"
)

// Module wires the database connection into the fx graph.
var Module = fx.Module("db",
	fx.Provide(
		Dialect,
		Open,
	),
)

type OpenParams struct {
	fx.In

	Config    config.Config
	Dialector gorm.Dialector
	Log       *zap.Logger
	GormCfg   *gorm.Config `optional:"true"`
	Lifecycle fx.Lifecycle
}

func Open(p OpenParams) (*gorm.DB, error) {
	gormCfg := p.GormCfg
	if gormCfg == nil {
		gormCfg = &gorm.Config{
			Logger: obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
		}
	}

	conn, err := gorm.Open(p.Dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(p.Config.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(p.Config.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(p.Config.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(p.Config.DBConnMaxIdleTime) * time.Second)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		},
		OnStop: func(ctx context.Context) error {
			p.Log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	return conn, nil
}
