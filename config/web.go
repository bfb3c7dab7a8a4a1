package config

import (
	"github.com/jcooky/go-din"
)

type WebConfig struct {
	Host                string `env:"HOST"`
	Port                int    `env:"PORT"`
	DatabaseUrl         string `env:"DATABASE_URL"`
	DatabaseAutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE"`
	QueryWorkers        int    `env:"QUERY_WORKERS"`
	QueryQueueSize      int    `env:"QUERY_QUEUE_SIZE"`
}

func init() {
	din.RegisterT(func(c *din.Container) (*WebConfig, error) {
		conf := &WebConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			DatabaseUrl:         "sqlite://saberweb.db",
			DatabaseAutoMigrate: true,
			QueryWorkers:        4,
			QueryQueueSize:      64,
		}
		return conf, resolveConfig(conf, c.Env == din.EnvTest)
	})
}
