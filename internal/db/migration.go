package db

import (
	"context"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"gorm.io/gorm"
)

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)

	return errors.WithStack(tx.AutoMigrate(
		&entity.User{},
		&entity.UserAPIKey{},
		&entity.UserDatabaseConnection{},
		&entity.UserModelConfig{},
		&entity.UserSettings{},
		&entity.Thread{},
		&entity.Message{},
	))
}

func DropAll(ctx context.Context, db *gorm.DB) error {
	_, tx := OpenSession(ctx, db)
	return errors.WithStack(tx.Migrator().DropTable(
		&entity.Message{},
		&entity.Thread{},
		&entity.UserSettings{},
		&entity.UserModelConfig{},
		&entity.UserDatabaseConnection{},
		&entity.UserAPIKey{},
		&entity.User{},
	))
}
