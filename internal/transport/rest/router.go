package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"conceptforge/internal/logger"
	"conceptforge/internal/service"
	"conceptforge/internal/transport/rest/handler"
)

// Container holds all dependencies for the router
type Container struct {
	Completions *service.CompletionService
	Sessions    *service.SessionService
	Decisions   *service.DecisionService
	Clusters    *service.ClusterService
	Log         *logger.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	wizardHandler := handler.NewWizardHandler(c.Completions, c.Log)
	sessionHandler := handler.NewSessionHandler(c.Sessions)
	decisionHandler := handler.NewDecisionHandler(c.Decisions)
	clusterHandler := handler.NewClusterHandler(c.Clusters)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Streamed completion endpoints
	v1.HandleFunc("/wizard/stage1", wizardHandler.Stage1).Methods("POST", "OPTIONS")
	v1.HandleFunc("/wizard/analyze-stage1", wizardHandler.AnalyzeStage1).Methods("POST", "OPTIONS")
	v1.HandleFunc("/wizard/analyze-stage2", wizardHandler.AnalyzeStage2).Methods("POST", "OPTIONS")
	v1.HandleFunc("/wizard/finalize", wizardHandler.Finalize).Methods("POST", "OPTIONS")

	// Session persistence
	v1.HandleFunc("/sessions/{key}", sessionHandler.Save).Methods("PUT", "OPTIONS")
	v1.HandleFunc("/sessions/{key}", sessionHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/sessions/{key}", sessionHandler.Abandon).Methods("DELETE", "OPTIONS")

	// Pending-decision queue
	v1.HandleFunc("/concepts/{conceptId}/pending/{index}", decisionHandler.PendingAt).Methods("GET", "OPTIONS")
	v1.HandleFunc("/concepts/{conceptId}/decisions", decisionHandler.Submit).Methods("POST", "OPTIONS")
	v1.HandleFunc("/concepts/{conceptId}/fragments/{fragmentId}/skip", decisionHandler.Skip).Methods("POST", "OPTIONS")

	// Cluster reads
	v1.HandleFunc("/concepts/{conceptId}/clusters", clusterHandler.ListByConcept).Methods("GET", "OPTIONS")
	v1.HandleFunc("/clusters/{clusterId}/members", clusterHandler.Members).Methods("GET", "OPTIONS")
	v1.HandleFunc("/clusters/{clusterId}/status", clusterHandler.SetStatus).Methods("PUT", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
