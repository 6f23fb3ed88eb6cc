package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/exception"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Querier answers dashboard queries.
type Querier interface {
	Handle(ctx context.Context, q Query) (interface{}, error)
}

// TransactionScorer scores a live transaction.
type TransactionScorer interface {
	Handle(ctx context.Context, tx model.Transaction) (interface{}, error)
}

// ScorerFunc adapts a function to TransactionScorer.
type ScorerFunc func(ctx context.Context, tx model.Transaction) (interface{}, error)

func (f ScorerFunc) Handle(ctx context.Context, tx model.Transaction) (interface{}, error) {
	return f(ctx, tx)
}

type errorBody struct {
	Error string `json:"error"`
}

// NewRouter routes the dashboard query, live scoring, metrics and health endpoints.
func NewRouter(queries Querier, scorer TransactionScorer, registry *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/query", func(w http.ResponseWriter, req *http.Request) {
		var q Query
		if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
			writeError(w, exception.NewValidationError(moduleName, "malformed query", err))
			return
		}
		out, err := queries.Handle(req.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}).Methods(http.MethodPost)

	r.HandleFunc("/inference", func(w http.ResponseWriter, req *http.Request) {
		var tx model.Transaction
		if err := json.NewDecoder(req.Body).Decode(&tx); err != nil {
			writeError(w, exception.NewValidationError(moduleName, "malformed transaction", err))
			return
		}
		out, err := scorer.Handle(req.Context(), tx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}).Methods(http.MethodPost)

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, exception.ErrValidation) {
		status = http.StatusBadRequest
	} else {
		logger.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: exception.ExtractErrorMessage(err)})
}

// Server is the HTTP listener for the router.
type Server struct {
	srv *http.Server
}

// NewServer creates a Server on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned; later serve errors other than a clean shutdown are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	logger.Infof("HTTP server listening on %s.", ln.Addr())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server stopped: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
