package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/casefiler/internal/proxy"
	"github.com/shehryarbajwa/casefiler/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Health).Methods("GET")

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Starting a submission opens a provider session, so only that is rate limited
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter))
	rateLimitedAPI.HandleFunc("/submissions", h.CreateSubmission).Methods("POST", "OPTIONS")

	api.HandleFunc("/submissions", h.ListSubmissions).Methods("GET")
	api.HandleFunc("/submissions/{id}", h.GetSubmission).Methods("GET")
	api.HandleFunc("/submissions/{id}", h.CloseSubmission).Methods("DELETE", "OPTIONS")

	// Live view of the session under review
	api.HandleFunc("/submissions/{id}/live", func(w http.ResponseWriter, r *http.Request) {
		proxyServer.HandleLiveConnection(w, r, tenantID(r), mux.Vars(r)["id"])
	}).Methods("GET")

	// CORS middleware
	r.Use(corsMiddleware)

	return r
}
