// Package bridge is the bridge server: the long-running part of the process
// that the console and service modes start once configuration is applied.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned by Setup when no configuration has been applied.
var ErrNotConfigured = errors.New("bridge configuration has not been applied")

// ErrNotSetUp is returned by Listen when Setup has not succeeded.
var ErrNotSetUp = errors.New("bridge server has not been set up")

// Server is the bridge's local HTTP front.
type Server struct {
	mu         sync.RWMutex
	logger     *logrus.Entry
	config     *config.BridgeConfig
	router     *mux.Router
	httpServer *http.Server
	startedAt  time.Time
	version    string
}

// NewServer creates a server that traces through log.
func NewServer(log *logging.Context, version string) *Server {
	return &Server{
		logger:  log.Component("bridge"),
		version: version,
	}
}

// ApplyConfig stores the bridge configuration for the next Setup.
func (s *Server) ApplyConfig(cfg *config.BridgeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg
	s.logger.WithFields(logrus.Fields{
		"listen_address": cfg.ListenAddress,
		"auth_enabled":   cfg.AuthEnabled(),
	}).Debug("Bridge configuration applied")
}

// Setup builds the router and HTTP server from the applied configuration.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return ErrNotConfigured
	}

	s.router = mux.NewRouter()
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.Handle("/status", s.authenticationMiddleware(http.HandlerFunc(s.handleStatus))).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.IdleTimeout) * time.Second,
	}

	s.logger.WithField("addr", s.config.ListenAddress).Info("Bridge server set up")
	return nil
}

// Handler returns the configured router. Nil before Setup.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.router == nil {
		return nil
	}
	return s.router
}

// Listen serves until ctx is cancelled or the listener fails.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	if httpServer == nil {
		s.mu.Unlock()
		return ErrNotSetUp
	}
	grace := s.config.ShutdownGrace()
	s.startedAt = time.Now()
	s.mu.Unlock()

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
	}

	return s.serve(ctx, httpServer, ln, grace)
}

func (s *Server) serve(ctx context.Context, httpServer *http.Server, ln net.Listener, grace time.Duration) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("Bridge server listening")

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Bridge server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("bridge server shutdown: %w", err)
		}
		s.logger.Info("Bridge server shutdown complete")
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("bridge server error: %w", err)
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type statusResponse struct {
	ListenAddress string `json:"listen_address"`
	AuthEnabled   bool   `json:"auth_enabled"`
	LogLevel      string `json:"log_level"`
	StartedAt     string `json:"started_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	var uptime time.Duration
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Truncate(time.Second)
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  uptime.String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := statusResponse{
		ListenAddress: s.config.ListenAddress,
		AuthEnabled:   s.config.AuthEnabled(),
		LogLevel:      s.config.LogLevel,
	}
	if !s.startedAt.IsZero() {
		resp.StartedAt = s.startedAt.UTC().Format(time.RFC3339)
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeErrorResponse writes a JSON error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().Unix(),
	})
}
