// Package api exposes embedding and retrieval codes over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Xangel0s/docqr-Flex-sub000/errkind"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
	"github.com/Xangel0s/docqr-Flex-sub000/qrcode"
	"github.com/Xangel0s/docqr-Flex-sub000/stamp"
	"github.com/Xangel0s/docqr-Flex-sub000/storage"
	"github.com/Xangel0s/docqr-Flex-sub000/store"
)

// OriginalsDir is where uploaded originals are stored.
const OriginalsDir = "originals"

// Submitter runs embedding requests.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.Request) orchestrator.EmbedResult
}

// Server handles the HTTP API.
type Server struct {
	jobs    Submitter
	records store.Store
	files   storage.Storage
	codes   *qrcode.Generator
	logger  *log.Logger
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New creates a Server.
func New(jobs Submitter, records store.Store, files storage.Storage, codes *qrcode.Generator, opts ...Option) *Server {
	s := &Server{
		jobs:    jobs,
		records: records,
		files:   files,
		codes:   codes,
		logger:  log.Default(),
		maxBody: 32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/v1/documents", s.postDocument)
	r.Route("/v1/documents/{id}", func(r chi.Router) {
		r.Delete("/", s.deleteDocument)
		r.Post("/embed", s.postEmbed)
		r.Get("/code.png", s.getCode)
		r.Get("/placement", s.getPlacement)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// StatusFor maps a failure kind to its HTTP status.
func StatusFor(kind errkind.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case errkind.Busy:
		return http.StatusConflict
	case errkind.Validation:
		return http.StatusUnprocessableEntity
	case errkind.Protected:
		return http.StatusLocked
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.OriginalLost:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// DocumentResponse describes a newly uploaded document.
type DocumentResponse struct {
	DocumentID string `json:"document_id"`
	CodeURL    string `json:"code_url"`
}

// postDocument stores the request body as the original of a new document.
func (s *Server) postDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, errkind.Validation, "document too large")
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		s.writeError(w, http.StatusBadRequest, errkind.Validation, "body is not a PDF document")
		return
	}

	id := uuid.NewString()
	src := path.Join(OriginalsDir, id+".pdf")
	if err := s.files.Write(r.Context(), src, data); err != nil {
		s.logger.Error("store original", "document", id, "err", err)
		s.writeError(w, http.StatusInternalServerError, errkind.Storage, errkind.MessageFor(errkind.Storage))
		return
	}
	if err := s.records.Create(r.Context(), &store.Record{ID: id, SourcePath: src}); err != nil {
		s.logger.Error("create record", "document", id, "err", err)
		if err := s.files.Delete(r.Context(), src); err != nil {
			s.logger.Error("remove orphaned original", "document", id, "path", src, "err", err)
		}
		s.writeError(w, http.StatusInternalServerError, errkind.Storage, errkind.MessageFor(errkind.Storage))
		return
	}
	s.logger.Info("document uploaded", "document", id, "bytes", len(data))
	s.writeJSON(w, http.StatusCreated, DocumentResponse{DocumentID: id, CodeURL: s.codes.URL(id)})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.records.SoftDelete(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replacementBody struct {
	PDF    []byte  `json:"pdf,omitempty"`
	Image  []byte  `json:"image,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

type embedBody struct {
	Placement *placement.Canonical `json:"placement"`
	// Overlay is a base64 PNG or JPEG; the document's retrieval code when
	// empty.
	Overlay     []byte           `json:"overlay,omitempty"`
	Replacement *replacementBody `json:"replacement,omitempty"`
}

func (s *Server) postEmbed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body embedBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, errkind.Validation, fmt.Sprintf("malformed request body: %v", err))
		return
	}
	if body.Placement == nil {
		s.writeError(w, http.StatusBadRequest, errkind.Validation, "placement is required")
		return
	}

	req := orchestrator.Request{DocumentID: id, Overlay: body.Overlay, Placement: *body.Placement}
	if len(req.Overlay) == 0 {
		code, err := s.codes.PNG(id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, errkind.Internal, errkind.MessageFor(errkind.Internal))
			return
		}
		req.Overlay = code
	}
	if rb := body.Replacement; rb != nil {
		rep := &stamp.Replacement{PDF: rb.PDF, Image: rb.Image, Width: rb.Width, Height: rb.Height}
		if rb.Unit != "" {
			u, err := placement.ParseUnit(rb.Unit)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, errkind.Validation, err.Error())
				return
			}
			rep.Unit = u
		}
		req.Replacement = rep
	}

	res := s.jobs.Submit(r.Context(), req)
	s.writeJSON(w, StatusFor(res.ErrorKind), res)
}

func (s *Server) getCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.records.Get(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	data, err := s.codes.PNG(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errkind.Internal, errkind.MessageFor(errkind.Internal))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("write code", "document", id, "err", err)
	}
}

// PlacementResponse is the current state of a document.
type PlacementResponse struct {
	DocumentID  string               `json:"document_id"`
	Status      store.Status         `json:"status"`
	Placement   *placement.Canonical `json:"placement"`
	ArtifactRef string               `json:"artifact_ref,omitempty"`
	Digest      string               `json:"digest,omitempty"`
	Strategy    string               `json:"strategy,omitempty"`
}

func (s *Server) getPlacement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PlacementResponse{
		DocumentID:  rec.ID,
		Status:      rec.Status,
		Placement:   rec.Placement,
		ArtifactRef: rec.ArtifactPath,
		Digest:      rec.Digest,
		Strategy:    rec.Strategy,
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	kind := errkind.Of(err)
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("record lookup failed", "err", err)
	}
	s.writeError(w, StatusFor(kind), kind, errkind.MessageFor(kind))
}

type errorBody struct {
	Success   bool         `json:"success"`
	ErrorKind errkind.Kind `json:"error_kind"`
	Message   string       `json:"message"`
	Hint      string       `json:"hint,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind errkind.Kind, msg string) {
	s.writeJSON(w, status, errorBody{ErrorKind: kind, Message: msg, Hint: errkind.HintFor(kind)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "status", status, "err", err)
	}
}

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, logger *log.Logger) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
