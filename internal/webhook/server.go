package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/hookgate/internal/delivery"
	"github.com/mattjoyce/hookgate/internal/replay"
	"github.com/mattjoyce/hookgate/internal/signature"
)

// Server represents the webhook HTTP server.
type Server struct {
	config Config
	queue  Queuer
	guard  replay.Guard
	logger *slog.Logger
	server *http.Server

	// endpoints maps URL paths to their configurations
	endpoints map[string]*endpoint
}

type endpoint struct {
	EndpointConfig
	verifier *signature.Verifier
}

// Option configures a Server.
type Option func(*Server)

// WithReplayGuard rejects deliveries whose signature was already accepted.
func WithReplayGuard(g replay.Guard) Option {
	return func(s *Server) {
		s.guard = g
	}
}

// New creates a new webhook server instance. It fails if any endpoint lacks
// a secret, so a misconfigured service never accepts traffic.
func New(config Config, queue Queuer, logger *slog.Logger, opts ...Option) (*Server, error) {
	endpoints := make(map[string]*endpoint, len(config.Endpoints))
	for i := range config.Endpoints {
		ep := config.Endpoints[i]

		// Apply defaults
		if ep.MaxBodySize == 0 {
			ep.MaxBodySize = DefaultMaxBodySize
		}
		if ep.SignatureHeader == "" {
			ep.SignatureHeader = signature.DefaultHeader
		}
		if ep.Tolerance <= 0 {
			ep.Tolerance = signature.DefaultTolerance
		}

		v, err := signature.NewVerifier(ep.Secret, signature.WithTolerance(ep.Tolerance))
		if err != nil {
			return nil, fmt.Errorf("webhook endpoint %q: %w", ep.Path, err)
		}
		endpoints[ep.Path] = &endpoint{EndpointConfig: ep, verifier: v}
	}

	s := &Server{
		config:    config,
		queue:     queue,
		logger:    logger,
		endpoints: endpoints,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "endpoints", len(s.endpoints), "replay_guard", s.guard != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	for path := range s.endpoints {
		r.Post(path, s.handleWebhook)
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes bodies and signature headers).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "hookgate")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleWebhook verifies a signed POST and hands the raw body to the queue.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ep, ok := s.endpoints[r.URL.Path]
	if !ok {
		s.respondText(w, http.StatusNotFound, "Not found")
		return
	}

	// An unsigned request is refused before its body is read.
	headerValue := r.Header.Get(ep.SignatureHeader)
	if headerValue == "" {
		s.reject(w, r, signature.ReasonMissingSignature)
		return
	}

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, ep.MaxBodySize+1))
	if err != nil {
		s.respondText(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if int64(len(body)) > ep.MaxBodySize {
		s.respondText(w, http.StatusRequestEntityTooLarge, bodyTooLarge)
		return
	}

	header, err := ep.verifier.VerifyHeader(headerValue, body)
	if err != nil {
		s.reject(w, r, signature.ReasonOf(err))
		return
	}

	secs, _ := header.Unix()

	if s.guard != nil {
		expires := signature.TimestampTime(secs).Add(ep.Tolerance)
		if err := replay.Check(ctx, s.guard, header.Signature, expires); err != nil {
			if errors.Is(err, replay.ErrReplayed) {
				s.logger.Warn("webhook replay rejected",
					"path", r.URL.Path,
					"request_id", middleware.GetReqID(ctx),
				)
				s.respondText(w, http.StatusConflict, bodyReplayed)
				return
			}
			s.logger.Error("replay guard failed", "path", r.URL.Path, "error", err)
			s.respondText(w, http.StatusInternalServerError, bodyInternal)
			return
		}
	}

	id, err := s.queue.Enqueue(ctx, delivery.EnqueueRequest{
		Source:             r.URL.Path,
		Payload:            body,
		SignatureTimestamp: secs,
	})
	if err != nil {
		s.logger.Error("failed to enqueue webhook delivery",
			"path", r.URL.Path,
			"error", err,
		)
		// Nothing was stored, so a retry of the same delivery must not be
		// taken for a replay.
		if s.guard != nil {
			if err := replay.Release(ctx, s.guard, header.Signature); err != nil {
				s.logger.Error("failed to release replay key", "path", r.URL.Path, "error", err)
			}
		}
		s.respondText(w, http.StatusInternalServerError, bodyInternal)
		return
	}

	s.logger.Info("webhook accepted",
		"path", r.URL.Path,
		"delivery_id", id,
		"bytes", len(body),
	)
	s.respondText(w, http.StatusOK, bodyOK)
}

// reject logs a verification failure and writes its response.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, reason signature.Reason) {
	s.logger.Warn("webhook rejected",
		"path", r.URL.Path,
		"reason", reason.String(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	status, msg := rejection(reason)
	s.respondText(w, status, msg)
}

// rejection maps a verification failure to its HTTP status and body.
func rejection(reason signature.Reason) (int, string) {
	switch reason {
	case signature.ReasonMissingSignature:
		return http.StatusBadRequest, bodyMissingSignature
	case signature.ReasonMalformedSignature:
		return http.StatusBadRequest, bodyMalformedSignature
	case signature.ReasonRequestExpired:
		return http.StatusForbidden, bodyRequestExpired
	default:
		return http.StatusUnauthorized, bodyUnauthorized
	}
}

// respondText sends a plain-text response.
func (s *Server) respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
