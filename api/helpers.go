package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/SarthakJariwala/sqlsaber-web/entity"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
)

type contextKey string

const userContextKey contextKey = "api.user"

// authMiddleware resolves the requesting user from the X-User-Email header
// set by the authenticating reverse proxy. Unknown users are created on
// first request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.Header.Get("X-User-Email"))
		if email == "" {
			s.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if _, err := mail.ParseAddress(email); err != nil {
			s.writeError(w, http.StatusUnauthorized, "Invalid user identity")
			return
		}

		tx := s.db.WithContext(r.Context())

		var user entity.User
		if err := tx.Where(entity.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
			s.logger.Error("failed to resolve user", "email", email, mylog.Err(err))
			s.writeError(w, http.StatusInternalServerError, "Internal error")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) *entity.User {
	user, _ := r.Context().Value(userContextKey).(*entity.User)
	return user
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", mylog.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSONBody(r *http.Request, out any) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "invalid JSON body")
	}
	return nil
}

func trimPrompt(prompt string) string {
	return strings.TrimSpace(prompt)
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidParams, "invalid %s", name)
	}
	return uint(id), nil
}
