package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
)

func (s *Server) registerCatalogRoutes(router *mux.Router) {
	router.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		providers := r.URL.Query()["provider"]
		s.writeJSON(w, http.StatusOK, userconfig.GetModelCatalog(providers...))
	}).Methods("GET")
}
