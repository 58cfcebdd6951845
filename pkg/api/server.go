package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/account"
	"github.com/modelsite/modelsite-go/pkg/config"
	"github.com/modelsite/modelsite-go/pkg/history"
	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/mlmodel"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// Server provides HTTP API endpoints
type Server struct {
	cfg        *config.Config
	store      metadatastore.Store
	router     *mux.Router
	httpServer *http.Server
	log        *zap.Logger

	models   *ModelHandler
	accounts *AccountHandler
	history  *HistoryHandler
}

// NewServer creates a new API server backed by store and the model service
func NewServer(cfg *config.Config, store metadatastore.Store, modelService *mlmodel.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		router:   mux.NewRouter(),
		log:      log,
		models:   NewModelHandler(modelService, cfg.MaxUploadBytes()),
		accounts: NewAccountHandler(account.NewService(store, log)),
		history:  NewHistoryHandler(history.NewService(store, log)),
	}

	s.setupRoutes()
	return s
}

// setupRoutes sets up the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.errorRecoveryMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	// Accounts
	s.router.HandleFunc("/signup", s.accounts.HandleSignup).Methods(http.MethodPost)
	s.router.HandleFunc("/login", s.accounts.HandleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/change-password", s.accounts.HandleChangePassword).Methods(http.MethodPost)
	s.router.HandleFunc("/users/{username}", s.accounts.HandleDeleteUser).Methods(http.MethodDelete)

	// Model history
	s.router.HandleFunc("/save-model-result", s.history.HandleSave).Methods(http.MethodPost)
	s.router.HandleFunc("/model-history/{username}", s.history.HandleList).Methods(http.MethodGet)
	s.router.HandleFunc("/clear-model-history/{username}", s.history.HandleClear).Methods(http.MethodDelete)

	// Models
	s.router.HandleFunc("/model-families", s.models.HandleFamilies).Methods(http.MethodGet)
	s.router.HandleFunc("/recommend-model", s.models.HandleRecommend).Methods(http.MethodPost)
	for _, family := range s.models.service.Families() {
		if family == models.ModelFamilyNeuralNetwork {
			s.router.HandleFunc("/"+string(family), s.models.HandleNeuralNetwork).Methods(http.MethodPost)
			continue
		}
		s.router.HandleFunc("/"+string(family), s.models.HandleTrain(family)).Methods(http.MethodPost)
	}
}

// Handler returns the router wrapped with the configured CORS policy
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: s.cfg.AllowCredentials,
	})
	return c.Handler(s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("Starting API server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to ModelSite Backend"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Backend is running properly"})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady handles readiness check requests
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
