package scopelock

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	redis "github.com/redis/go-redis/v9"

	"github.com/smallbiznis/uprl/internal/config"
)

var Module = fx.Module("scopelock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewLocker(p Params) Locker {
	if p.Config.ScopeLockRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     p.Config.RedisAddr,
			Password: p.Config.RedisPassword,
			DB:       p.Config.RedisDB,
		})
		p.Log.Named("scopelock").Info("using redis scope lock", zap.String("addr", p.Config.RedisAddr))
		return NewRedisLocker(client, p.Config.ScopeLockTTL)
	}
	return NewKeyed()
}
