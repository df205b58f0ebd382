// Package server exposes the pipeline over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"idea2blog/pipeline"
	"idea2blog/publisher"
)

const maxBodyBytes = 1 << 20

type Server struct {
	orch           *pipeline.Orchestrator
	pub            *publisher.Publisher
	logger         *zap.Logger
	requestTimeout time.Duration
	now            func() time.Time
}

func New(orch *pipeline.Orchestrator, pub *publisher.Publisher, requestTimeout time.Duration, logger *zap.Logger) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		orch:           orch,
		pub:            pub,
		logger:         logger.Named("http"),
		requestTimeout: requestTimeout,
		now:            time.Now,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleSessionCreate)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSessionGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleSessionDelete)
	mux.HandleFunc("POST /api/sessions/{id}/narrate", s.handleNarrate)
	mux.HandleFunc("POST /api/sessions/{id}/edits", s.handleEdit)
	mux.HandleFunc("POST /api/sessions/{id}/renarrate", s.handleReNarrate)
	mux.HandleFunc("POST /api/sessions/{id}/finalize", s.handleFinalize)
	mux.HandleFunc("POST /api/sessions/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExportGet)
	return s.logMiddleware(mux)
}

// --- Handlers ---

type sessionCreateReq struct {
	Idea string `json:"idea"`
}

type editReq struct {
	Edit string `json:"edit"`
}

type finalizeResp struct {
	SessionID string `json:"session_id"`
	BlogPost  string `json:"blog_post"`
	HTML      string `json:"html"`
	Title     string `json:"title"`
	Digest    string `json:"digest"`
	Revision  int    `json:"revision"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateReq
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	view, err := s.orch.SubmitIdea(ctx, req.Idea)
	if err != nil {
		s.writeError(w, err, view.SessionID)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	snap, err := s.orch.View(ctx, id)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := s.orch.Delete(ctx, id); err != nil {
		s.writeError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNarrate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	view, err := s.orch.Narrate(ctx, id)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req editReq
	if !s.decode(w, r, &req) {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	view, err := s.orch.AddRefinementEdit(ctx, id, req.Edit)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReNarrate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	view, err := s.orch.ReNarrate(ctx, id)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	blog, err := s.orch.FinalizeBlog(ctx, id)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	art, err := s.pub.Render(blog.BlogPost)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResp{
		SessionID: id,
		BlogPost:  blog.BlogPost,
		HTML:      art.HTML,
		Title:     art.Title,
		Digest:    art.Digest,
		Revision:  blog.Revision,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.pub.HasArchive() {
		s.writeArchiveError(w, publisher.ErrNoArchive, id)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	snap, err := s.orch.View(ctx, id)
	if err != nil {
		s.writeError(w, err, id)
		return
	}
	if _, err := s.pub.Export(ctx, snap); err != nil {
		s.writeError(w, err, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx, cancel := s.requestContext(r)
	defer cancel()

	rec, err := s.pub.Load(ctx, id)
	if err != nil {
		s.writeArchiveError(w, err, id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Helpers ---

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeErrorBody(w, http.StatusBadRequest, errorDetail{
			Kind:    string(pipeline.KindInvalidInput),
			Message: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

type errorDetail struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindInvalidInput:
		return http.StatusBadRequest
	case pipeline.KindSessionNotFound:
		return http.StatusNotFound
	case pipeline.KindInvalidTransition:
		return http.StatusConflict
	case pipeline.KindModelUnavailable, pipeline.KindSessionBusy:
		return http.StatusServiceUnavailable
	case pipeline.KindModelRejected,
		pipeline.KindMissingField,
		pipeline.KindMalformedField,
		pipeline.KindExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error, sessionID string) {
	kind := pipeline.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("session_id", sessionID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	writeErrorBody(w, status, errorDetail{
		Kind:      string(kind),
		Stage:     pipeline.StageOf(err),
		Message:   err.Error(),
		SessionID: sessionID,
	})
}

func (s *Server) writeArchiveError(w http.ResponseWriter, err error, id string) {
	d := errorDetail{Stage: "export", Message: err.Error(), SessionID: id}
	switch {
	case errors.Is(err, publisher.ErrNoArchive):
		d.Kind = string(pipeline.KindInvalidInput)
		writeErrorBody(w, http.StatusBadRequest, d)
	case errors.Is(err, publisher.ErrNotFound):
		d.Kind = string(pipeline.KindSessionNotFound)
		writeErrorBody(w, http.StatusNotFound, d)
	default:
		s.writeError(w, err, id)
	}
}

func writeErrorBody(w http.ResponseWriter, status int, d errorDetail) {
	writeJSON(w, status, struct {
		Error errorDetail `json:"error"`
	}{d})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}
