// Package server exposes the Prometheus metrics and the status of the
// detection loop over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	// StatusFunc returns a JSON serializable snapshot of the detection loop
	StatusFunc func() interface{}

	// Server is the status HTTP server
	Server struct {
		srv *http.Server
		log *log.Logger
	}
)

// New creates a server listening on addr
func New(addr string, registry *prometheus.Registry, status StatusFunc, logger *log.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           Router(registry, status),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger,
	}
}

// Router builds the routes of the status server
func Router(registry *prometheus.Registry, status StatusFunc) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	}).Methods("GET")
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods("GET")
	return router
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		s.log.WithFields(log.Fields{
			"address": s.srv.Addr,
		}).Info("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithFields(log.Fields{
				"address": s.srv.Addr,
				"error":   err.Error(),
			}).Error("Status server stopped")
		}
	}()
}

// Stop shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
