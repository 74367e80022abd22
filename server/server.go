// Package server exposes the chat pipeline over HTTP: a message
// endpoint answering with a server-sent event stream, conversation
// retrieval and clearing, and a health report.
//
// Information Hiding:
// - Route table and SSE framing hidden behind the Server type
// - Error-to-status mapping delegated to the chat error taxonomy
// - Handlers depend on the ChatService interface, not the orchestrator

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/chatrelay/chat"
	"github.com/richinex/chatrelay/conversation"
	"github.com/richinex/chatrelay/stream"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
	idleTimeout  = 60 * time.Second

	// maxBodySize bounds the message endpoint body. Content is capped
	// at 100k characters downstream; this leaves headroom for JSON
	// framing and multi-byte runes.
	maxBodySize = 1 << 20
)

// ChatService is the pipeline surface the HTTP layer needs. Satisfied
// by *chat.Orchestrator.
type ChatService interface {
	SendMessage(ctx context.Context, sessionID, content string) (<-chan stream.Event, error)
	Conversation(sessionID string) (conversation.Conversation, error)
	ClearConversation(sessionID string)
	Stats() chat.Stats
}

var _ ChatService = (*chat.Orchestrator)(nil)

// Server serves the chat API and, optionally, a static frontend.
type Server struct {
	service   ChatService
	logger    *zap.Logger
	startedAt time.Time
	httpSrv   *http.Server
}

// New builds a server listening on addr. staticDir, when non-empty, is
// served at the root path.
func New(addr string, service ChatService, staticDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service:   service,
		logger:    logger,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/message", s.handleMessage)
	mux.HandleFunc("GET /api/chat/conversation/{sessionId}", s.handleGetConversation)
	mux.HandleFunc("DELETE /api/chat/conversation/{sessionId}", s.handleClearConversation)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	if staticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(staticDir)))
	}

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.requestLog(mux),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// messageRequest is the POST /api/chat/message body.
type messageRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// errorResponse is the synchronous JSON error body.
type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, &chat.Error{
			Code:    chat.CodeValidation,
			Message: "request body must be JSON with sessionId and content",
			Err:     err,
		})
		return
	}

	events, err := s.service.SendMessage(r.Context(), req.SessionID, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The LLM stream can outlive the server write timeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("failed to marshal stream event", zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			// Client gone. The request context cancels the pipeline;
			// keep draining so the producer can finish.
			continue
		}
		if err := rc.Flush(); err != nil {
			continue
		}
	}
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.service.Conversation(r.PathValue("sessionId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	s.service.ClearConversation(sessionID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": sessionID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
		"conversations": stats.Conversations,
		"activeStreams": stats.ActiveStreams,
		"provider":      stats.Provider,
		"model":         stats.Model,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response", zap.Error(err))
	}
}

// writeError maps a pipeline error to its JSON body and status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	chatErr, ok := chat.AsError(err)
	if !ok {
		chatErr = &chat.Error{Code: chat.CodeInternal, Message: "internal error", Err: err}
	}
	if chatErr.Code == chat.CodeInternal {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, chatErr.HTTPStatus(), errorResponse{
		Error:   true,
		Message: chatErr.Message,
		Type:    string(chatErr.Code),
	})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer for
// Flush and SetWriteDeadline.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLog is the access-log middleware.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
