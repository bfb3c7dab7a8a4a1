package api

import (
	"encoding/json"
	"time"

	"github.com/mokiat/gog"
	"gorm.io/datatypes"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/internal/stringutils"
)

type (
	threadSummary struct {
		ID                         string  `json:"id"`
		Title                      string  `json:"title"`
		Status                     string  `json:"status"`
		DatabaseConnectionID       *uint   `json:"database_connection_id"`
		DatabaseConnectionName     *string `json:"database_connection_name"`
		DatabaseConnectionIsActive *bool   `json:"database_connection_is_active"`
		ModelConfigID              *uint   `json:"model_config_id"`
		ModelConfigDisplayName     *string `json:"model_config_display_name"`
		ModelConfigModelName       *string `json:"model_config_model_name"`
		ModelConfigIsActive        *bool   `json:"model_config_is_active"`
		CreatedAt                  string  `json:"created_at"`
		UpdatedAt                  string  `json:"updated_at"`
	}

	threadDetail struct {
		threadSummary
		Error string `json:"error"`
	}

	messageView struct {
		ID        uint                  `json:"id"`
		Type      entity.MessageType    `json:"type"`
		Content   entity.MessageContent `json:"content"`
		CreatedAt string                `json:"created_at"`
	}

	apiKeyView struct {
		ID       uint   `json:"id"`
		Provider string `json:"provider"`
		Name     string `json:"name"`
		Preview  string `json:"preview"`
		IsActive bool   `json:"is_active"`
	}

	connectionView struct {
		ID       uint   `json:"id"`
		Name     string `json:"name"`
		Memory   string `json:"memory"`
		IsActive bool   `json:"is_active"`
	}

	modelConfigView struct {
		ID             uint   `json:"id"`
		DisplayName    string `json:"display_name"`
		Provider       string `json:"provider"`
		ModelName      string `json:"model_name"`
		APIKeyID       uint   `json:"api_key_id"`
		APIKeyIsActive bool   `json:"api_key_is_active"`
		IsActive       bool   `json:"is_active"`
	}

	userConfigView struct {
		Configured          bool              `json:"configured"`
		OnboardingCompleted bool              `json:"onboarding_completed"`
		Defaults            configDefaults    `json:"defaults"`
		DatabaseConnections []connectionView  `json:"database_connections"`
		APIKeys             []apiKeyView      `json:"api_keys"`
		ModelConfigs        []modelConfigView `json:"model_configs"`
	}

	configDefaults struct {
		DatabaseConnectionID *uint `json:"database_connection_id"`
		ModelConfigID        *uint `json:"model_config_id"`
	}
)

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func serializeThreadSummary(t *entity.Thread) threadSummary {
	summary := threadSummary{
		ID:                   t.ID.String(),
		Title:                t.Title,
		Status:               string(t.Status),
		DatabaseConnectionID: t.DatabaseConnectionID,
		ModelConfigID:        t.ModelConfigID,
		CreatedAt:            isoTime(t.CreatedAt),
		UpdatedAt:            isoTime(t.UpdatedAt),
	}

	if conn := t.DatabaseConnection; conn != nil {
		summary.DatabaseConnectionName = gog.PtrOf(conn.Name)
		summary.DatabaseConnectionIsActive = gog.PtrOf(conn.IsActive)
	}
	if model := t.ModelConfig; model != nil {
		summary.ModelConfigDisplayName = gog.PtrOf(model.DisplayName)
		summary.ModelConfigModelName = gog.PtrOf(model.ModelName)
		summary.ModelConfigIsActive = gog.PtrOf(model.IsActive)
	}

	return summary
}

func serializeThread(t *entity.Thread) threadDetail {
	return threadDetail{
		threadSummary: serializeThreadSummary(t),
		Error:         t.ErrorMessage,
	}
}

func serializeMessages(messages []entity.Message) []messageView {
	return gog.Map(messages, func(m entity.Message) messageView {
		return messageView{
			ID:        m.ID,
			Type:      m.Type,
			Content:   m.Content.Data(),
			CreatedAt: isoTime(m.CreatedAt),
		}
	})
}

func serializeAPIKey(k *entity.UserAPIKey) apiKeyView {
	return apiKeyView{
		ID:       k.ID,
		Provider: k.Provider,
		Name:     k.Name,
		Preview:  stringutils.KeyPreview(k.APIKey),
		IsActive: k.IsActive,
	}
}

func serializeConnection(c *entity.UserDatabaseConnection) connectionView {
	return connectionView{
		ID:       c.ID,
		Name:     c.Name,
		Memory:   c.Memory,
		IsActive: c.IsActive,
	}
}

func serializeModelConfig(m *entity.UserModelConfig) modelConfigView {
	return modelConfigView{
		ID:             m.ID,
		DisplayName:    m.DisplayName,
		Provider:       m.Provider,
		ModelName:      m.ModelName,
		APIKeyID:       m.APIKeyID,
		APIKeyIsActive: m.APIKey.IsActive,
		IsActive:       m.IsActive,
	}
}

// hasHistory reports whether a thread has a replayable transcript. Content is
// only ever a list once a run completed; anything else means there is nothing
// to continue from.
func hasHistory(content datatypes.JSON) bool {
	var elements []json.RawMessage
	if err := json.Unmarshal(content, &elements); err != nil {
		return false
	}
	return len(elements) > 0
}
