package userconfig_test

import (
	"os"
	"testing"

	"github.com/jcooky/go-din"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	myerrors "github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/db"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mytesting"
	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
)

type UserConfigTestSuite struct {
	mytesting.Suite

	service userconfig.Service
	DB      *gorm.DB

	user entity.User
}

func (s *UserConfigTestSuite) SetupTest() {
	os.Setenv("ENV_TEST_FILE", "../.env.test")
	s.Suite.SetupTest()

	s.service = din.MustGetT[userconfig.Service](s.Container)
	s.DB = din.MustGet[*gorm.DB](s.Container, db.Key)

	s.user = entity.User{Email: "alice@example.com", Name: "Alice"}
	s.Require().NoError(s.DB.Save(&s.user).Error)
}

func (s *UserConfigTestSuite) createAPIKey(active bool) *entity.UserAPIKey {
	key := entity.UserAPIKey{
		UserID:   s.user.ID,
		Provider: "anthropic",
		Name:     "work",
		APIKey:   "sk-ant-test-1234",
		IsActive: active,
	}
	s.Require().NoError(s.DB.Save(&key).Error)
	return &key
}

func (s *UserConfigTestSuite) createConnection(active bool) *entity.UserDatabaseConnection {
	conn := entity.UserDatabaseConnection{
		UserID:           s.user.ID,
		Name:             "analytics",
		ConnectionString: "postgres://localhost:5432/analytics",
		Memory:           "  orders table is partitioned by month  ",
		IsActive:         active,
	}
	s.Require().NoError(s.DB.Save(&conn).Error)
	return &conn
}

func (s *UserConfigTestSuite) createModel(key *entity.UserAPIKey, active bool) *entity.UserModelConfig {
	model := entity.UserModelConfig{
		UserID:      s.user.ID,
		DisplayName: "Claude Sonnet",
		Provider:    "anthropic",
		ModelName:   "anthropic:claude-sonnet-4-5",
		APIKeyID:    key.ID,
		IsActive:    active,
	}
	s.Require().NoError(s.DB.Save(&model).Error)
	return &model
}

func (s *UserConfigTestSuite) createThread() *entity.Thread {
	thread := entity.Thread{UserID: s.user.ID, Title: "orders"}
	s.Require().NoError(s.DB.Save(&thread).Error)
	return &thread
}

func (s *UserConfigTestSuite) TestEnsureDefaultsBackfills() {
	conn := s.createConnection(true)
	key := s.createAPIKey(true)
	model := s.createModel(key, true)

	settings, err := s.service.EnsureDefaults(s.Context, s.user.ID)
	s.Require().NoError(err)

	s.Require().NotNil(settings.DefaultDatabaseConnectionID)
	s.Equal(conn.ID, *settings.DefaultDatabaseConnectionID)
	s.Require().NotNil(settings.DefaultModelConfigID)
	s.Equal(model.ID, *settings.DefaultModelConfigID)
}

func (s *UserConfigTestSuite) TestEnsureDefaultsSkipsInactive() {
	s.createConnection(false)
	key := s.createAPIKey(false)
	s.createModel(key, true)

	settings, err := s.service.EnsureDefaults(s.Context, s.user.ID)
	s.Require().NoError(err)

	s.Nil(settings.DefaultDatabaseConnectionID)
	s.Nil(settings.DefaultModelConfigID)
}

func (s *UserConfigTestSuite) TestInactiveRecordsPersistAsInactive() {
	conn := s.createConnection(false)
	key := s.createAPIKey(false)

	var storedConn entity.UserDatabaseConnection
	s.Require().NoError(s.DB.First(&storedConn, conn.ID).Error)
	s.False(storedConn.IsActive)

	var storedKey entity.UserAPIKey
	s.Require().NoError(s.DB.First(&storedKey, key.ID).Error)
	s.False(storedKey.IsActive)
}

func (s *UserConfigTestSuite) TestEnsureDefaultsKeepsExistingSelection() {
	first := s.createConnection(true)
	second := s.createConnection(true)

	settings, err := s.service.GetSettings(s.Context, s.user.ID)
	s.Require().NoError(err)
	settings.DefaultDatabaseConnectionID = &second.ID
	s.Require().NoError(settings.Save(s.DB))

	settings, err = s.service.EnsureDefaults(s.Context, s.user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(settings.DefaultDatabaseConnectionID)
	s.Equal(second.ID, *settings.DefaultDatabaseConnectionID)
	s.NotEqual(first.ID, *settings.DefaultDatabaseConnectionID)
}

func (s *UserConfigTestSuite) TestComputeStatus() {
	status, err := s.service.ComputeStatus(s.Context, s.user.ID)
	s.Require().NoError(err)
	s.False(status.OnboardingCompleted)
	s.False(status.HasDefaultDatabase)
	s.False(status.HasDefaultModel)
	s.False(status.IsConfigured())

	s.createConnection(true)
	key := s.createAPIKey(true)
	s.createModel(key, true)
	_, err = s.service.EnsureDefaults(s.Context, s.user.ID)
	s.Require().NoError(err)

	settings, err := s.service.GetSettings(s.Context, s.user.ID)
	s.Require().NoError(err)
	settings.OnboardingCompleted = true
	s.Require().NoError(settings.Save(s.DB))

	status, err = s.service.ComputeStatus(s.Context, s.user.ID)
	s.Require().NoError(err)
	s.True(status.IsConfigured())

	// deactivating the key invalidates the default model
	key.IsActive = false
	s.Require().NoError(key.Save(s.DB))

	status, err = s.service.ComputeStatus(s.Context, s.user.ID)
	s.Require().NoError(err)
	s.True(status.HasDefaultDatabase)
	s.False(status.HasDefaultModel)
	s.False(status.IsConfigured())
}

func (s *UserConfigTestSuite) TestResolveForThreadUsesDefaults() {
	conn := s.createConnection(true)
	key := s.createAPIKey(true)
	s.createModel(key, true)
	thread := s.createThread()

	config, err := s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().NoError(err)

	s.Equal(conn.ConnectionString, config.DatabaseConnection)
	s.Equal("anthropic:claude-sonnet-4-5", config.ModelName)
	s.Equal("sk-ant-test-1234", config.APIKey)
	s.Equal("orders table is partitioned by month", config.Memory)
}

func (s *UserConfigTestSuite) TestResolveForThreadPrefersThreadBinding() {
	s.createConnection(true)
	key := s.createAPIKey(true)
	s.createModel(key, true)

	bound := entity.UserDatabaseConnection{
		UserID:           s.user.ID,
		Name:             "staging",
		ConnectionString: "postgres://localhost:5432/staging",
		IsActive:         true,
	}
	s.Require().NoError(s.DB.Save(&bound).Error)

	thread := s.createThread()
	thread.DatabaseConnectionID = &bound.ID
	s.Require().NoError(s.DB.Save(thread).Error)

	config, err := s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().NoError(err)
	s.Equal(bound.ConnectionString, config.DatabaseConnection)
}

func (s *UserConfigTestSuite) TestResolveForThreadFallsBackWhenBindingInactive() {
	defaultConn := s.createConnection(true)
	key := s.createAPIKey(true)
	s.createModel(key, true)

	inactive := entity.UserDatabaseConnection{
		UserID:           s.user.ID,
		Name:             "retired",
		ConnectionString: "postgres://localhost:5432/retired",
		IsActive:         false,
	}
	s.Require().NoError(s.DB.Save(&inactive).Error)

	thread := s.createThread()
	thread.DatabaseConnectionID = &inactive.ID
	s.Require().NoError(s.DB.Save(thread).Error)

	// defaults were backfilled before the inactive connection existed
	settings, err := s.service.GetSettings(s.Context, s.user.ID)
	s.Require().NoError(err)
	settings.DefaultDatabaseConnectionID = &defaultConn.ID
	s.Require().NoError(settings.Save(s.DB))

	config, err := s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().NoError(err)
	s.Equal(defaultConn.ConnectionString, config.DatabaseConnection)
}

func (s *UserConfigTestSuite) TestResolveForThreadErrors() {
	thread := s.createThread()

	_, err := s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().ErrorIs(err, myerrors.ErrNoActiveDatabase)

	s.createConnection(true)
	_, err = s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().ErrorIs(err, myerrors.ErrNoActiveModel)

	key := s.createAPIKey(true)
	model := s.createModel(key, true)
	model.ModelName = "   "
	s.Require().NoError(model.Save(s.DB))

	_, err = s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().ErrorIs(err, myerrors.ErrMissingModelIdentifier)

	model.ModelName = "anthropic:claude-sonnet-4-5"
	s.Require().NoError(model.Save(s.DB))
	key.APIKey = ""
	s.Require().NoError(key.Save(s.DB))

	_, err = s.service.ResolveForThread(s.Context, thread.ID)
	s.Require().ErrorIs(err, myerrors.ErrMissingCredential)
}

func (s *UserConfigTestSuite) TestGetSelectedOrDefault() {
	conn := s.createConnection(true)
	key := s.createAPIKey(true)
	model := s.createModel(key, true)

	got, err := s.service.GetSelectedOrDefaultDB(s.Context, s.user.ID, nil)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(conn.ID, got.ID)

	gotModel, err := s.service.GetSelectedOrDefaultModel(s.Context, s.user.ID, nil)
	s.Require().NoError(err)
	s.Require().NotNil(gotModel)
	s.Equal(model.ID, gotModel.ID)

	missing := uint(9999)
	got, err = s.service.GetSelectedOrDefaultDB(s.Context, s.user.ID, &missing)
	s.Require().NoError(err)
	s.Nil(got)
}

func TestUserConfig(t *testing.T) {
	suite.Run(t, new(UserConfigTestSuite))
}
