package entity

import (
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"gorm.io/gorm"
)

// UserAPIKey is an API key for a specific model provider owned by a user.
//
// A user may have multiple keys (e.g. OpenAI + Anthropic), and multiple keys
// per provider (e.g. work + personal). Keys are "removed" by marking them
// inactive, never deleted, so historical threads keep a valid reference.
type UserAPIKey struct {
	gorm.Model

	UserID uint `gorm:"index:idx_api_key_user"`
	User   User

	Provider string `gorm:"index:idx_api_key_user_provider"`
	Name     string
	APIKey   string
	IsActive bool
}

func (k *UserAPIKey) Save(db *gorm.DB) error {
	return errors.Wrapf(db.Save(k).Error, "failed to save api key")
}

// UserDatabaseConnection is a database connection string owned by a user.
// Memory is an optional free-form context string fed to the model alongside
// queries against this connection.
type UserDatabaseConnection struct {
	gorm.Model

	UserID uint `gorm:"index:idx_db_connection_user"`
	User   User

	Name             string
	ConnectionString string
	Memory           string
	IsActive         bool
}

func (c *UserDatabaseConnection) Save(db *gorm.DB) error {
	return errors.Wrapf(db.Save(c).Error, "failed to save database connection")
}

// UserModelConfig is a configured model for a user. ModelName is in
// "provider:model" format. Each configured model references exactly one API key.
type UserModelConfig struct {
	gorm.Model

	UserID uint `gorm:"index:idx_model_config_user"`
	User   User

	DisplayName string
	Provider    string
	ModelName   string
	APIKeyID    uint
	APIKey      UserAPIKey
	IsActive    bool
}

func (m *UserModelConfig) Save(db *gorm.DB) error {
	return errors.Wrapf(db.Save(m).Error, "failed to save model config")
}

// UserSettings holds the per-user defaults used when a thread has no explicit
// database or model binding.
type UserSettings struct {
	gorm.Model

	UserID uint `gorm:"index:idx_user_settings_user_uniq,unique,where:deleted_at IS NULL"`
	User   User

	DefaultDatabaseConnectionID *uint
	DefaultDatabaseConnection   *UserDatabaseConnection
	DefaultModelConfigID        *uint
	DefaultModelConfig          *UserModelConfig

	OnboardingCompleted bool
}

func (s *UserSettings) Save(db *gorm.DB) error {
	return errors.Wrapf(db.Save(s).Error, "failed to save user settings")
}
