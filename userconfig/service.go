package userconfig

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jcooky/go-din"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/db"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

type (
	// RuntimeConfig is the fully resolved configuration one query execution
	// runs with. It is recomputed for every execution so deactivations and
	// edits in settings take effect on the next run, never retroactively.
	RuntimeConfig struct {
		DatabaseConnection string
		ModelName          string
		APIKey             string
		Memory             string
	}

	// ConfigStatus summarizes how complete a user's setup is.
	ConfigStatus struct {
		OnboardingCompleted bool `json:"onboarding_completed"`
		HasDefaultDatabase  bool `json:"has_default_database"`
		HasDefaultModel     bool `json:"has_default_model"`
	}

	Service interface {
		GetSettings(ctx context.Context, userID uint) (*entity.UserSettings, error)
		EnsureDefaults(ctx context.Context, userID uint) (*entity.UserSettings, error)
		ComputeStatus(ctx context.Context, userID uint) (*ConfigStatus, error)
		GetSelectedOrDefaultDB(ctx context.Context, userID uint, selectedID *uint) (*entity.UserDatabaseConnection, error)
		GetSelectedOrDefaultModel(ctx context.Context, userID uint, selectedID *uint) (*entity.UserModelConfig, error)
		ResolveForThread(ctx context.Context, threadID uuid.UUID) (*RuntimeConfig, error)
	}

	service struct {
		logger *mylog.Logger
		db     *gorm.DB
	}
)

func (s *ConfigStatus) IsConfigured() bool {
	return s.OnboardingCompleted && s.HasDefaultDatabase && s.HasDefaultModel
}

func (s *service) GetSettings(ctx context.Context, userID uint) (*entity.UserSettings, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var settings entity.UserSettings
	if err := tx.Where(entity.UserSettings{UserID: userID}).FirstOrCreate(&settings).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to get or create user settings")
	}

	return &settings, nil
}

// EnsureDefaults backfills missing default selections with the user's first
// active database connection and model. Existing selections are never
// overridden, even when inactive.
func (s *service) EnsureDefaults(ctx context.Context, userID uint) (*entity.UserSettings, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	_, tx := db.OpenSession(ctx, s.db)

	updated := false

	if settings.DefaultDatabaseConnectionID == nil {
		var conn entity.UserDatabaseConnection
		err := tx.Where("user_id = ? AND is_active = ?", userID, true).
			Order("created_at").
			First(&conn).Error
		if err == nil {
			settings.DefaultDatabaseConnectionID = &conn.ID
			updated = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(err, "failed to find default database connection")
		}
	}

	if settings.DefaultModelConfigID == nil {
		var model entity.UserModelConfig
		err := tx.
			Joins("JOIN user_api_keys ON user_api_keys.id = user_model_configs.api_key_id").
			Where("user_model_configs.user_id = ? AND user_model_configs.is_active = ? AND user_api_keys.is_active = ?", userID, true, true).
			Order("user_model_configs.created_at").
			First(&model).Error
		if err == nil {
			settings.DefaultModelConfigID = &model.ID
			updated = true
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(err, "failed to find default model config")
		}
	}

	if updated {
		if err := settings.Save(tx); err != nil {
			return nil, err
		}
	}

	return settings, nil
}

func (s *service) ComputeStatus(ctx context.Context, userID uint) (*ConfigStatus, error) {
	settings, err := s.loadSettingsWithDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &ConfigStatus{
		OnboardingCompleted: settings.OnboardingCompleted,
	}

	if conn := settings.DefaultDatabaseConnection; conn != nil && conn.IsActive {
		status.HasDefaultDatabase = true
	}
	if model := settings.DefaultModelConfig; model != nil && model.IsActive && model.APIKey.IsActive {
		status.HasDefaultModel = true
	}

	return status, nil
}

func (s *service) GetSelectedOrDefaultDB(ctx context.Context, userID uint, selectedID *uint) (*entity.UserDatabaseConnection, error) {
	settings, err := s.EnsureDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}

	connID := selectedID
	if connID == nil {
		connID = settings.DefaultDatabaseConnectionID
	}
	if connID == nil {
		return nil, nil
	}

	_, tx := db.OpenSession(ctx, s.db)

	var conn entity.UserDatabaseConnection
	err = tx.Where("user_id = ? AND id = ? AND is_active = ?", userID, *connID, true).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to find database connection")
	}

	return &conn, nil
}

func (s *service) GetSelectedOrDefaultModel(ctx context.Context, userID uint, selectedID *uint) (*entity.UserModelConfig, error) {
	settings, err := s.EnsureDefaults(ctx, userID)
	if err != nil {
		return nil, err
	}

	modelID := selectedID
	if modelID == nil {
		modelID = settings.DefaultModelConfigID
	}
	if modelID == nil {
		return nil, nil
	}

	_, tx := db.OpenSession(ctx, s.db)

	var model entity.UserModelConfig
	err = tx.Preload("APIKey").
		Where("user_id = ? AND id = ? AND is_active = ?", userID, *modelID, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to find model config")
	}

	if !model.APIKey.IsActive {
		return nil, nil
	}

	return &model, nil
}

// ResolveForThread builds the runtime configuration for one execution of the
// given thread. Thread-level bindings win over user defaults; inactive
// bindings fall through to the default rather than failing outright.
func (s *service) ResolveForThread(ctx context.Context, threadID uuid.UUID) (*RuntimeConfig, error) {
	_, tx := db.OpenSession(ctx, s.db)

	var thread entity.Thread
	if err := tx.
		Preload("DatabaseConnection").
		Preload("ModelConfig").
		Preload("ModelConfig.APIKey").
		First(&thread, "id = ?", threadID).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find thread")
	}

	if _, err := s.EnsureDefaults(ctx, thread.UserID); err != nil {
		return nil, err
	}

	settings, err := s.loadSettingsWithDefaults(ctx, thread.UserID)
	if err != nil {
		return nil, err
	}

	var conn *entity.UserDatabaseConnection
	if thread.DatabaseConnection != nil && thread.DatabaseConnection.IsActive {
		conn = thread.DatabaseConnection
	} else if settings.DefaultDatabaseConnection != nil && settings.DefaultDatabaseConnection.IsActive {
		conn = settings.DefaultDatabaseConnection
	}
	if conn == nil {
		return nil, errors.WithStack(errors.ErrNoActiveDatabase)
	}

	var model *entity.UserModelConfig
	if thread.ModelConfig != nil && thread.ModelConfig.IsActive && thread.ModelConfig.APIKey.IsActive {
		model = thread.ModelConfig
	} else if settings.DefaultModelConfig != nil && settings.DefaultModelConfig.IsActive && settings.DefaultModelConfig.APIKey.IsActive {
		model = settings.DefaultModelConfig
	}
	if model == nil {
		return nil, errors.WithStack(errors.ErrNoActiveModel)
	}

	connectionString := strings.TrimSpace(conn.ConnectionString)
	if connectionString == "" {
		return nil, errors.WithStack(errors.ErrEmptyConnectionString)
	}

	apiKey := strings.TrimSpace(model.APIKey.APIKey)
	if apiKey == "" {
		return nil, errors.WithStack(errors.ErrMissingCredential)
	}

	modelName := strings.TrimSpace(model.ModelName)
	if modelName == "" {
		return nil, errors.WithStack(errors.ErrMissingModelIdentifier)
	}

	return &RuntimeConfig{
		DatabaseConnection: connectionString,
		ModelName:          modelName,
		APIKey:             apiKey,
		Memory:             strings.TrimSpace(conn.Memory),
	}, nil
}

func (s *service) loadSettingsWithDefaults(ctx context.Context, userID uint) (*entity.UserSettings, error) {
	if _, err := s.GetSettings(ctx, userID); err != nil {
		return nil, err
	}

	_, tx := db.OpenSession(ctx, s.db)

	var settings entity.UserSettings
	if err := tx.
		Preload("DefaultDatabaseConnection").
		Preload("DefaultModelConfig").
		Preload("DefaultModelConfig.APIKey").
		Where(entity.UserSettings{UserID: userID}).
		First(&settings).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to load user settings")
	}

	return &settings, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Service, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return &service{
			logger: logger,
			db:     din.MustGet[*gorm.DB](c, db.Key),
		}, nil
	})
}
