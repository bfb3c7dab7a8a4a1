package entity

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model

	Email string `gorm:"index:idx_user_email_uniq,unique,where:deleted_at IS NULL"`
	Name  string
}
