package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mokiat/gog"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/worker"
)

type threadPromptRequest struct {
	Prompt               string `json:"prompt"`
	DatabaseConnectionID *uint  `json:"database_connection_id"`
	ModelConfigID        *uint  `json:"model_config_id"`
}

func (s *Server) registerThreadRoutes(router *mux.Router) {
	router.HandleFunc("/threads", s.listThreads).Methods("GET")
	router.HandleFunc("/threads", s.createThread).Methods("POST")
	router.HandleFunc("/threads/{id}", s.getThread).Methods("GET")
	router.HandleFunc("/threads/{id}/messages", s.getMessages).Methods("GET")
	router.HandleFunc("/threads/{id}/continue", s.continueThread).Methods("POST")
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	tx := s.db.WithContext(r.Context())

	var threads []entity.Thread
	if err := tx.
		Preload("DatabaseConnection").
		Preload("ModelConfig").
		Where("user_id = ?", user.ID).
		Order("updated_at DESC").
		Find(&threads).Error; err != nil {
		s.logger.Error("failed to list threads", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"threads": gog.Map(threads, func(t entity.Thread) threadSummary {
			return serializeThreadSummary(&t)
		}),
	})
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	ctx := r.Context()

	var req threadPromptRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	prompt := trimPrompt(req.Prompt)
	if prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	conn, err := s.configService.GetSelectedOrDefaultDB(ctx, user.ID, req.DatabaseConnectionID)
	if err != nil {
		s.logger.Error("failed to resolve database connection", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	model, err := s.configService.GetSelectedOrDefaultModel(ctx, user.ID, req.ModelConfigID)
	if err != nil {
		s.logger.Error("failed to resolve model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if conn == nil || model == nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error":    "Configuration required",
			"redirect": "/settings/",
		})
		return
	}

	created, err := s.threadManager.CreateThread(ctx, user.ID, prompt, &conn.ID, &model.ID)
	if err != nil {
		s.logger.Error("failed to create thread", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if _, err := s.threadManager.CreateMessage(ctx, created.ID, entity.MessageTypeUser, entity.MessageContent{Text: prompt}); err != nil {
		s.logger.Error("failed to create user message", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if err := s.dispatcher.Enqueue(ctx, worker.Task{ThreadID: created.ID, Prompt: prompt}); err != nil {
		s.logger.Error("failed to enqueue task", mylog.Err(err))
		s.writeError(w, http.StatusServiceUnavailable, "Query queue is full. Try again shortly.")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"id": created.ID.String()})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	s.respondThreadWithMessages(w, r, 0)
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	var afterID uint
	if after := r.URL.Query().Get("after"); after != "" {
		parsed, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid after parameter")
			return
		}
		afterID = uint(parsed)
	}

	s.respondThreadWithMessages(w, r, afterID)
}

func (s *Server) respondThreadWithMessages(w http.ResponseWriter, r *http.Request, afterID uint) {
	found, ok := s.threadForUser(w, r)
	if !ok {
		return
	}

	messages, err := s.threadManager.GetMessages(r.Context(), found.ID, afterID)
	if err != nil {
		s.logger.Error("failed to list messages", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"thread":   serializeThread(found),
		"messages": serializeMessages(messages),
	})
}

func (s *Server) continueThread(w http.ResponseWriter, r *http.Request) {
	user := requestUser(r)
	ctx := r.Context()

	found, ok := s.threadForUser(w, r)
	if !ok {
		return
	}

	var req threadPromptRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	prompt := trimPrompt(req.Prompt)
	if prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	switch found.Status {
	case entity.ThreadStatusRunning:
		s.writeError(w, http.StatusConflict, "Thread is currently running. Please wait for completion.")
		return
	case entity.ThreadStatusPending:
		s.writeError(w, http.StatusConflict, "Thread has not started yet.")
		return
	}

	conn, err := s.configService.GetSelectedOrDefaultDB(ctx, user.ID, req.DatabaseConnectionID)
	if err != nil {
		s.logger.Error("failed to resolve database connection", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	model, err := s.configService.GetSelectedOrDefaultModel(ctx, user.ID, req.ModelConfigID)
	if err != nil {
		s.logger.Error("failed to resolve model config", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if conn == nil || model == nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error":    "Configuration required",
			"redirect": "/settings/",
		})
		return
	}

	if !hasHistory(found.Content) {
		s.writeError(w, http.StatusBadRequest, "No message history available for this thread.")
		return
	}

	if _, err := s.threadManager.CreateMessage(ctx, found.ID, entity.MessageTypeUser, entity.MessageContent{Text: prompt}); err != nil {
		s.logger.Error("failed to create user message", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	requeued, err := s.threadManager.Requeue(ctx, found.ID, &conn.ID, &model.ID)
	if err != nil {
		s.logger.Error("failed to requeue thread", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !requeued {
		s.writeError(w, http.StatusConflict, "Thread is currently running. Please wait for completion.")
		return
	}

	if err := s.dispatcher.Enqueue(ctx, worker.Task{ThreadID: found.ID, Prompt: prompt}); err != nil {
		s.logger.Error("failed to enqueue task", mylog.Err(err))
		s.writeError(w, http.StatusServiceUnavailable, "Query queue is full. Try again shortly.")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"id":     found.ID.String(),
		"status": "queued",
	})
}

// threadForUser loads the addressed thread and enforces ownership. Threads
// belonging to other users look like 404s, never 403s.
func (s *Server) threadForUser(w http.ResponseWriter, r *http.Request) (*entity.Thread, bool) {
	user := requestUser(r)

	threadID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Thread not found")
		return nil, false
	}

	tx := s.db.WithContext(r.Context())

	var found entity.Thread
	err = tx.
		Preload("DatabaseConnection").
		Preload("ModelConfig").
		Where("user_id = ?", user.ID).
		First(&found, "id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.writeError(w, http.StatusNotFound, "Thread not found")
		return nil, false
	} else if err != nil {
		s.logger.Error("failed to load thread", mylog.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Internal error")
		return nil, false
	}

	return &found, true
}
