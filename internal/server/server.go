// Package server exposes editor sessions over a JSON HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qwill/qwill/internal/autosave"
	"github.com/qwill/qwill/internal/filetype"
	"github.com/qwill/qwill/internal/metrics"
	"github.com/qwill/qwill/internal/pagination"
	"github.com/qwill/qwill/internal/storage"
	"github.com/qwill/qwill/pkg/api"
)

const maxUpload = 64 << 20

// Dependencies are the collaborators of a Server
type Dependencies struct {
	Storage       storage.Backend
	Options       api.Options
	AutosaveDelay time.Duration
}

// Server holds one editor per open document, keyed by document id.
type Server struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*api.Editor
}

// New creates a server. Sessions only load images from data URLs.
func New(deps Dependencies) *Server {
	api.WithInlineResourcesOnly()(&deps.Options)
	return &Server{deps: deps, sessions: make(map[string]*api.Editor)}
}

// RegisterRoutes adds the API routes to mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /documents", s.handleList)
	mux.HandleFunc("POST /documents", s.handleCreate)
	mux.HandleFunc("GET /documents/{id}", s.handleGet)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDelete)
	mux.HandleFunc("PUT /documents/{id}/pages/{page}", s.handleSetPage)
	mux.HandleFunc("PUT /documents/{id}/font", s.handleSetFont)
	mux.HandleFunc("GET /documents/{id}/export", s.handleExport)
	mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the routes wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return logRequests(mux)
}

// Close saves and closes every open document
func (s *Server) Close() error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*api.Editor)
	s.mu.Unlock()

	var errs []error
	for id, e := range sessions {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// session returns the editor of a document, opening it from storage when
// needed. Loading runs outside the lock; of two racing opens the first one
// inserted wins.
func (s *Server) session(ctx context.Context, id string) (*api.Editor, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return e, nil
	}

	e = api.NewWithOptions(s.deps.Options)
	if _, err := e.Open(ctx, s.deps.Storage, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	e.EnableAutosave(s.deps.Storage, id, s.deps.AutosaveDelay)
	s.sessions[id] = e
	return e, nil
}

type documentResponse struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Pages    []api.Page      `json:"pages"`
	Focused  string          `json:"focused,omitempty"`
	Autosave autosave.Status `json:"autosave"`
}

func document(id string, e *api.Editor) documentResponse {
	return documentResponse{
		ID:       id,
		Title:    e.Title(),
		Pages:    e.Pages(),
		Focused:  e.Focused(),
		Autosave: e.AutosaveStatus(),
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Storage.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if list == nil {
		list = []storage.Meta{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	id := uuid.NewString()
	e := api.NewWithOptions(s.deps.Options)
	if len(bytes.TrimSpace(data)) > 0 {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload"
		}
		if err := e.Import(r.Context(), name, data); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("import rejected")
			if errors.Is(err, filetype.ErrUnsupported) {
				writeError(w, http.StatusUnsupportedMediaType, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if _, err := e.Save(r.Context(), s.deps.Storage, id); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to store new document")
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}
	e.EnableAutosave(s.deps.Storage, id, s.deps.AutosaveDelay)

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	log.Info().Str("id", id).Int("pages", len(e.Pages())).Msg("document created")
	writeJSON(w, http.StatusCreated, document(id, e))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	e, ok := s.open(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, document(id, e))
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpload)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	e, ok := s.open(w, r, id)
	if !ok {
		return
	}
	if err := e.SetPageContent(r.PathValue("page"), body.Content); err != nil {
		if errors.Is(err, pagination.ErrUnknownPage) {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, document(id, e))
}

func (s *Server) handleSetFont(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Family string `json:"family"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Family == "" {
		writeError(w, http.StatusBadRequest, "family is required")
		return
	}
	e, ok := s.open(w, r, id)
	if !ok {
		return
	}
	e.SetFont(body.Family)
	writeJSON(w, http.StatusOK, document(id, e))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(filetype.PDF)
	}
	format, err := filetype.Parse(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", name))
		return
	}
	e, ok := s.open(w, r, id)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := e.Export(&buf, format); err != nil {
		log.Error().Err(err).Str("id", id).Str("format", name).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.Title()+format.Extension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		// pending saves land before the delete
		_ = e.Close()
	}

	if err := s.deps.Storage.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		if errors.Is(err, storage.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, "invalid document id")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("failed to delete document")
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	log.Info().Str("id", id).Msg("document deleted")
	w.WriteHeader(http.StatusNoContent)
}

// open resolves the session of id, writing the error response when there is
// none.
func (s *Server) open(w http.ResponseWriter, r *http.Request, id string) (*api.Editor, bool) {
	e, err := s.session(r.Context(), id)
	switch {
	case err == nil:
		return e, true
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, storage.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid document id")
	default:
		log.Error().Err(err).Str("id", id).Msg("failed to open document")
		writeError(w, http.StatusInternalServerError, "failed to open document")
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
