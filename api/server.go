package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jcooky/go-din"
	"gorm.io/gorm"

	"github.com/SarthakJariwala/sqlsaber-web/internal/db"
	"github.com/SarthakJariwala/sqlsaber-web/internal/mylog"
	"github.com/SarthakJariwala/sqlsaber-web/thread"
	"github.com/SarthakJariwala/sqlsaber-web/userconfig"
	"github.com/SarthakJariwala/sqlsaber-web/worker"
)

type Server struct {
	logger        *mylog.Logger
	db            *gorm.DB
	threadManager thread.Manager
	configService userconfig.Service
	dispatcher    worker.Dispatcher
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(s.authMiddleware)

	s.registerThreadRoutes(apiRouter)
	s.registerUserConfigRoutes(apiRouter)
	s.registerCatalogRoutes(apiRouter)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-Email"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)

	return recovery(cors(router))
}

func init() {
	din.RegisterT(func(c *din.Container) (*Server, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}

		return &Server{
			logger:        logger,
			db:            din.MustGet[*gorm.DB](c, db.Key),
			threadManager: din.MustGetT[thread.Manager](c),
			configService: din.MustGetT[userconfig.Service](c),
			dispatcher:    din.MustGetT[worker.Dispatcher](c),
		}, nil
	})
}
