package api

import (
	"net/http"

	"knowledge-agent/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware order: tracing first, then recovery, then CORS.
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// Query surface
	r.HandleFunc("/ask", h.Ask).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ingest", h.Ingest).Methods("POST")
	api.HandleFunc("/documents", h.ListDocuments).Methods("GET")
	api.HandleFunc("/documents/{id}", h.DeleteDocument).Methods("DELETE")

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Live ingest progress
	r.HandleFunc("/ws/ingest", h.IngestStream)

	return r
}
