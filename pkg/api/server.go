// Package api exposes the gateway's HTTP surface: the billing webhook,
// usage/quota introspection, and the health/metrics endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/grump-ai/gateway/pkg/billing"
	"github.com/grump-ai/gateway/pkg/governor"
	"github.com/grump-ai/gateway/pkg/observability"
	"github.com/grump-ai/gateway/pkg/tiers"
	"github.com/grump-ai/gateway/pkg/usage"
)

// Server hosts the gateway HTTP API
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics

	sync     *billing.Sync
	subs     *billing.SubscriptionStore
	catalog  *tiers.Catalog
	governor *governor.Governor
	recorder *usage.Recorder
}

// NewServer creates a server and registers all routes
func NewServer(
	sync *billing.Sync,
	subs *billing.SubscriptionStore,
	catalog *tiers.Catalog,
	gov *governor.Governor,
	recorder *usage.Recorder,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		metrics:  metrics,
		sync:     sync,
		subs:     subs,
		catalog:  catalog,
		governor: gov,
		recorder: recorder,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.handle("/billing/webhook", http.HandlerFunc(s.HandleBillingWebhook)).Methods("POST")
	s.handle("/v1/usage/{user_id}", http.HandlerFunc(s.GetUserUsage)).Methods("GET")
	s.handle("/v1/quota/{user_id}", http.HandlerFunc(s.GetUserQuota)).Methods("GET")
	s.handle("/v1/tiers", http.HandlerFunc(s.ListTiers)).Methods("GET")
}

func (s *Server) handle(path string, h http.Handler) *mux.Route {
	if s.metrics != nil {
		h = s.metrics.InstrumentHandler(path, h)
	}
	return s.router.Handle(path, h)
}

// Router returns the underlying router so callers can mount additional
// governed routes behind the middleware chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewHealthRouter builds the health/metrics mux served on the health port
func NewHealthRouter(metrics *observability.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	}).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
