// Package api exposes the webhook receiver over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"helius-swap-ingest/internal/ingestion"
	"helius-swap-ingest/internal/observability"
)

// DefaultMaxBodyBytes caps one webhook body.
const DefaultMaxBodyBytes = 10 << 20

// Ingester processes one webhook body. ingestion.Pipeline implements it.
type Ingester interface {
	Handle(ctx context.Context, body []byte) (ingestion.Result, error)
}

// Server routes webhook, health, metrics and feed requests.
type Server struct {
	ingester     Ingester
	authHeader   string
	maxBodyBytes int64
	feed         http.Handler
	logger       *log.Logger
}

// Options contains configuration for creating a Server.
type Options struct {
	Ingester     Ingester
	AuthHeader   string       // Optional: expected Authorization header value
	MaxBodyBytes int64        // Default: DefaultMaxBodyBytes
	Feed         http.Handler // Optional: mounted at /swaps/stream
	Logger       *log.Logger
}

// NewServer creates a new HTTP server.
func NewServer(opts Options) *Server {
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		ingester:     opts.Ingester,
		authHeader:   opts.AuthHeader,
		maxBodyBytes: maxBody,
		feed:         opts.Feed,
		logger:       logger,
	}
}

// Routes returns the HTTP handler with every route registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhooks", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	if s.feed != nil {
		mux.Handle("GET /swaps/stream", s.requireAuth(s.feed))
	}

	return mux
}

// WebhookResponse is the JSON body of a successful webhook call.
type WebhookResponse struct {
	Status string `json:"status"`
	RawID  int64  `json:"raw_id"`
}

// ErrorResponse is the JSON body of a failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Printf("Webhook body exceeds %d bytes", tooLarge.Limit)
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Payload too large"})
			return
		}
		s.logger.Printf("Failed to read webhook body: %v", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
		return
	}

	res, err := s.ingester.Handle(r.Context(), body)
	switch {
	case errors.Is(err, ingestion.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid payload"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to insert raw payload"})
	default:
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "success", RawID: res.RawID})
	}
}

// authorized reports whether r carries the configured Authorization value.
// Every request is authorized when no value is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.authHeader == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.authHeader)) == 1
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
