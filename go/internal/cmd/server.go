package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// routeRegistrar is a service that mounts its endpoints on the router.
type routeRegistrar interface {
	RegisterRoutes(r *mux.Router)
}

func setupServer(config *Config, services *Services) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Server.Port),
		Handler:           newHandler(config, services.Lessons, services.Challenges),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newHandler(config *Config, registrars ...routeRegistrar) http.Handler {
	router := mux.NewRouter()

	// Register services
	for _, r := range registrars {
		r.RegisterRoutes(router)
	}

	// Add health check endpoint
	setupHealthCheck(router)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: config.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	// Wrap with CORS, then serve HTTP/2 without TLS
	return h2c.NewHandler(c.Handler(router), &http2.Server{})
}

func setupHealthCheck(router *mux.Router) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	}).Methods(http.MethodGet, http.MethodHead)
}
