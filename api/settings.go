package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mokiat/gog"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
)

func (s *Server) registerUserConfigRoutes(router *mux.Router) {
	router.HandleFunc("/user/config", s.getUserConfig).Methods("GET")
	router.HandleFunc("/user/config/update", s.updateUserSettings).Methods("POST")

	router.HandleFunc("/user/api-keys/add", s.addAPIKey).Methods("POST")
	router.HandleFunc("/user/api-keys/{id}/update", s.updateAPIKey).Methods("POST")
	router.HandleFunc("/user/api-keys/{id}/set-active", s.setAPIKeyActive).Methods("POST")

	router.HandleFunc("/user/db-connections/add", s.addConnection).Methods("POST")
	router.HandleFunc("/user/db-connections/{id}/update", s.updateConnection).Methods("POST")
	router.HandleFunc("/user/db-connections/{id}/set-active", s.setConnectionActive).Methods("POST")

	router.HandleFunc("/user/models/add", s.addModelConfig).Methods("POST")
	router.HandleFunc("/user/models/{id}/update", s.updateModelConfig).Methods("POST")
	router.HandleFunc("/user/models/{id}/set-active", s.setModelConfigActive).Methods("POST")
}

func (s *Server) getUserConfig(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	ctx := r.Context()

	if _, err := s.configService.EnsureDefaults(ctx, user.ID); err != nil {
		s.logger.Error("failed to ensure defaults", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	status, err := s.configService.ComputeStatus(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to compute config status", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	settings, err := s.configService.GetSettings(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load settings", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	tx := s.db.WithContext(ctx)

	var connections []entity.UserDatabaseConnection
	if err := tx.Where("user_id = ?", user.ID).Order("is_active, name").Find(&connections).Error; err != nil {
		s.logger.Error("failed to list connections", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	var keys []entity.UserAPIKey
	if err := tx.Where("user_id = ?", user.ID).Order("is_active, provider, name, id").Find(&keys).Error; err != nil {
		s.logger.Error("failed to list api keys", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	var models []entity.UserModelConfig
	if err := tx.Preload("APIKey").Where("user_id = ?", user.ID).Order("is_active, display_name").Find(&models).Error; err != nil {
		s.logger.Error("failed to list model configs", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	view := userConfigView{
		Configured:          status.IsConfigured(),
		OnboardingCompleted: status.OnboardingCompleted,
		DatabaseConnections: gog.Map(connections, func(c entity.UserDatabaseConnection) connectionView {
			return serializeConnection(&c)
		}),
		APIKeys: gog.Map(keys, func(k entity.UserAPIKey) apiKeyView {
			return serializeAPIKey(&k)
		}),
		ModelConfigs: gog.Map(models, func(m entity.UserModelConfig) modelConfigView {
			return serializeModelConfig(&m)
		}),
	}
	if status.HasDefaultDatabase {
		view.Defaults.DatabaseConnectionID = settings.DefaultDatabaseConnectionID
	}
	if status.HasDefaultModel {
		view.Defaults.ModelConfigID = settings.DefaultModelConfigID
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateUserSettings(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	ctx := r.Context()

	var req struct {
		OnboardingCompleted         *bool `json:"onboarding_completed"`
		DefaultDatabaseConnectionID *uint `json:"default_database_connection_id"`
		DefaultModelConfigID        *uint `json:"default_model_config_id"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	settings, err := s.configService.GetSettings(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to load settings", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	tx := s.db.WithContext(ctx)

	if req.DefaultDatabaseConnectionID != nil {
		if !s.ownsConnection(w, tx, user.ID, *req.DefaultDatabaseConnectionID) {
			return
		}
		settings.DefaultDatabaseConnectionID = req.DefaultDatabaseConnectionID
	}
	if req.DefaultModelConfigID != nil {
		if !s.ownsModelConfig(w, tx, user.ID, *req.DefaultModelConfigID) {
			return
		}
		settings.DefaultModelConfigID = req.DefaultModelConfigID
	}
	if req.OnboardingCompleted != nil {
		settings.OnboardingCompleted = *req.OnboardingCompleted
	}

	if err := settings.Save(tx); err != nil {
		s.logger.Error("failed to save settings", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addAPIKey(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req struct {
		Provider string `json:"provider"`
		Name     string `json:"name"`
		APIKey   string `json:"api_key"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !userconfig.IsAllowedProvider(req.Provider) {
		s.writeError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		s.writeError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	key := entity.UserAPIKey{
		UserID:   user.ID,
		Provider: userconfig.NormalizeProvider(req.Provider),
		Name:     strings.TrimSpace(req.Name),
		APIKey:   strings.TrimSpace(req.APIKey),
		IsActive: true,
	}
	if err := key.Save(s.db.WithContext(r.Context())); err != nil {
		s.logger.Error("failed to save api key", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeAPIKey(&key))
}

func (s *Server) updateAPIKey(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req struct {
		Name   *string `json:"name"`
		APIKey *string `json:"api_key"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tx := s.db.WithContext(r.Context())

	var key entity.UserAPIKey
	if !s.findOwned(w, tx, user.ID, id, &key, "API key not found") {
		return
	}

	if req.Name != nil {
		key.Name = strings.TrimSpace(*req.Name)
	}
	if req.APIKey != nil {
		if strings.TrimSpace(*req.APIKey) == "" {
			s.writeError(w, http.StatusBadRequest, "api_key must not be empty")
			return
		}
		key.APIKey = strings.TrimSpace(*req.APIKey)
	}

	if err := key.Save(tx); err != nil {
		s.logger.Error("failed to save api key", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeAPIKey(&key))
}

func (s *Server) setAPIKeyActive(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	active, ok := s.decodeActiveFlag(w, r)
	if !ok {
		return
	}

	tx := s.db.WithContext(r.Context())

	var key entity.UserAPIKey
	if !s.findOwned(w, tx, user.ID, id, &key, "API key not found") {
		return
	}

	key.IsActive = active
	if err := key.Save(tx); err != nil {
		s.logger.Error("failed to save api key", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeAPIKey(&key))
}

func (s *Server) addConnection(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req struct {
		Name             string `json:"name"`
		ConnectionString string `json:"connection_string"`
		Memory           string `json:"memory"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.ConnectionString) == "" {
		s.writeError(w, http.StatusBadRequest, "connection_string is required")
		return
	}

	conn := entity.UserDatabaseConnection{
		UserID:           user.ID,
		Name:             strings.TrimSpace(req.Name),
		ConnectionString: strings.TrimSpace(req.ConnectionString),
		Memory:           req.Memory,
		IsActive:         true,
	}
	if err := conn.Save(s.db.WithContext(r.Context())); err != nil {
		s.logger.Error("failed to save connection", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeConnection(&conn))
}

func (s *Server) updateConnection(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req struct {
		Name             *string `json:"name"`
		ConnectionString *string `json:"connection_string"`
		Memory           *string `json:"memory"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tx := s.db.WithContext(r.Context())

	var conn entity.UserDatabaseConnection
	if !s.findOwned(w, tx, user.ID, id, &conn, "Database connection not found") {
		return
	}

	if req.Name != nil {
		conn.Name = strings.TrimSpace(*req.Name)
	}
	if req.ConnectionString != nil {
		if strings.TrimSpace(*req.ConnectionString) == "" {
			s.writeError(w, http.StatusBadRequest, "connection_string must not be empty")
			return
		}
		conn.ConnectionString = strings.TrimSpace(*req.ConnectionString)
	}
	if req.Memory != nil {
		conn.Memory = *req.Memory
	}

	if err := conn.Save(tx); err != nil {
		s.logger.Error("failed to save connection", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeConnection(&conn))
}

func (s *Server) setConnectionActive(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	active, ok := s.decodeActiveFlag(w, r)
	if !ok {
		return
	}

	tx := s.db.WithContext(r.Context())

	var conn entity.UserDatabaseConnection
	if !s.findOwned(w, tx, user.ID, id, &conn, "Database connection not found") {
		return
	}

	conn.IsActive = active
	if err := conn.Save(tx); err != nil {
		s.logger.Error("failed to save connection", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeConnection(&conn))
}

func (s *Server) addModelConfig(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	var req struct {
		DisplayName string `json:"display_name"`
		Provider    string `json:"provider"`
		ModelName   string `json:"model_name"`
		APIKeyID    uint   `json:"api_key_id"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if !userconfig.IsAllowedProvider(req.Provider) {
		s.writeError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}
	if strings.TrimSpace(req.ModelName) == "" {
		s.writeError(w, http.StatusBadRequest, "model_name is required")
		return
	}

	tx := s.db.WithContext(r.Context())

	var key entity.UserAPIKey
	if !s.findOwned(w, tx, user.ID, req.APIKeyID, &key, "API key not found") {
		return
	}

	model := entity.UserModelConfig{
		UserID:      user.ID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Provider:    userconfig.NormalizeProvider(req.Provider),
		ModelName:   strings.TrimSpace(req.ModelName),
		APIKeyID:    key.ID,
		IsActive:    true,
	}
	if err := model.Save(tx); err != nil {
		s.logger.Error("failed to save model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	model.APIKey = key

	s.writeJSON(w, http.StatusOK, serializeModelConfig(&model))
}

func (s *Server) updateModelConfig(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		ModelName   *string `json:"model_name"`
		APIKeyID    *uint   `json:"api_key_id"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	tx := s.db.WithContext(r.Context())

	var model entity.UserModelConfig
	if !s.findOwned(w, tx, user.ID, id, &model, "Model config not found") {
		return
	}

	if req.DisplayName != nil {
		model.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.ModelName != nil {
		if strings.TrimSpace(*req.ModelName) == "" {
			s.writeError(w, http.StatusBadRequest, "model_name must not be empty")
			return
		}
		model.ModelName = strings.TrimSpace(*req.ModelName)
	}
	if req.APIKeyID != nil {
		var key entity.UserAPIKey
		if !s.findOwned(w, tx, user.ID, *req.APIKeyID, &key, "API key not found") {
			return
		}
		model.APIKeyID = key.ID
	}

	if err := model.Save(tx); err != nil {
		s.logger.Error("failed to save model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if err := tx.Preload("APIKey").First(&model, model.ID).Error; err != nil {
		s.logger.Error("failed to reload model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeModelConfig(&model))
}

func (s *Server) setModelConfigActive(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)

	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid id")
		return
	}

	active, ok := s.decodeActiveFlag(w, r)
	if !ok {
		return
	}

	tx := s.db.WithContext(r.Context())

	var model entity.UserModelConfig
	if !s.findOwned(w, tx, user.ID, id, &model, "Model config not found") {
		return
	}

	model.IsActive = active
	if err := model.Save(tx); err != nil {
		s.logger.Error("failed to save model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, serializeModelConfig(&model))
}

func (s *Server) decodeActiveFlag(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSONBody(r, &req); err != nil || req.IsActive == nil {
		s.writeError(w, http.StatusBadRequest, "is_active is required")
		return false, false
	}
	return *req.IsActive, true
}

// findOwned loads a user-scoped record by id. Records of other users are
// reported as not found.
func (s *Server) findOwned(w http.ResponseWriter, tx *gorm.DB, userID, id uint, out any, notFound string) bool {
	err := tx.Where("user_id = ?", userID).First(out, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, notFound)
		return false
	} else if err != nil {
		s.logger.Error("failed to load record", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return false
	}
	return true
}

func (s *Server) ownsConnection(w http.ResponseWriter, tx *gorm.DB, userID, id uint) bool {
	var conn entity.UserDatabaseConnection
	return s.findOwned(w, tx, userID, id, &conn, "Database connection not found")
}

func (s *Server) ownsModelConfig(w http.ResponseWriter, tx *gorm.DB, userID, id uint) bool {
	var model entity.UserModelConfig
	return s.findOwned(w, tx, userID, id, &model, "Model config not found")
}
