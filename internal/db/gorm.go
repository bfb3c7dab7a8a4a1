package db

import (
	"strings"
	"time"

	"github.com/jcooky/go-din"

	"github.com/SarthakJariwala/sqlsaber-web/config"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	Key = din.NewRandomName()
)

// OpenDB opens the application database. Postgres URLs go through the
// postgres driver; anything else is treated as a sqlite path, optionally
// prefixed with "sqlite://".
func OpenDB(databaseUrl string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseUrl, "postgres://"), strings.HasPrefix(databaseUrl, "postgresql://"):
		dialector = postgres.Open(databaseUrl)
	default:
		dialector = sqlite.Open(strings.TrimPrefix(databaseUrl, "sqlite://"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		logger, err := din.Get[*mylog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		cfg, err := din.GetT[*config.WebConfig](c)
		if err != nil {
			return nil, err
		}

		databaseUrl := cfg.DatabaseUrl
		if c.Env == din.EnvTest {
			databaseUrl = "sqlite://file::memory:?cache=shared"
		}

		logger.Info("initialize database")
		db, err := OpenDB(databaseUrl)
		if err != nil {
			return nil, err
		}

		if c.Env == din.EnvTest {
			if err := DropAll(c, db); err != nil {
				return nil, errors.Wrapf(err, "failed to drop database")
			}
			time.Sleep(100 * time.Millisecond)
		}
		if cfg.DatabaseAutoMigrate || c.Env == din.EnvTest {
			if err := AutoMigrate(c, db); err != nil {
				return nil, errors.Wrapf(err, "failed to migrate database")
			}
		}

		go func() {
			<-c.Done()
			if err := CloseDB(db); err != nil {
				logger.Warn("failed to close database", "err", err)
			}
			logger.Info("database closed")
		}()

		return db, nil
	})
}
