package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/gallery"
	"github.com/saverx/saverx/internal/utils"
)

// controller is the part of the orchestrator the HTTP surface drives.
type controller interface {
	Submit(url string) (int64, error)
	Cancel(id int64)
	Snapshot(id int64) (types.Job, error)
	ListAll() []types.Job
	DrainEvents() []events.Event
	Subscribe() *events.Queue
	Unsubscribe(q *events.Queue)
}

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	URL string `json:"url"`
}

// DownloadResponse answers POST /download.
type DownloadResponse struct {
	ID int64 `json:"id"`
}

// Server exposes the orchestrator on a local port.
type Server struct {
	ctrl    controller
	gallery *gallery.Lister
	port    int
}

func NewServer(ctrl controller, lister *gallery.Lister, port int) *Server {
	return &Server{ctrl: ctrl, gallery: lister, port: port}
}

// Router sets up the routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(assignRequestID)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/download", s.handleSubmit)
	r.Get("/download", s.handleGetJob)
	r.Post("/cancel", s.handleCancel)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/events", s.handleDrainEvents)
	r.Get("/ws", s.handleStream)
	r.Get("/gallery", s.handleGallery)

	return r
}

// assignRequestID gives every request a UUID unless the caller sent one.
func assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.RequestIDHeader) == "" {
			r.Header.Set(middleware.RequestIDHeader, uuid.NewString())
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log := utils.Logger()
		log.Debug().
			Str("component", "http").
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		utils.Debug("HTTP: failed to encode response: %v", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusFor maps orchestrator errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func parseJobID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		return 0, fmt.Errorf("%w: missing id parameter", types.ErrInvalidInput)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", types.ErrInvalidInput, raw)
	}
	return id, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"port":    s.port,
		"version": Version,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	id, err := s.ctrl.Submit(req.URL)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	utils.Debug("HTTP: queued job %d for %s", id, req.URL)
	respondWithJSON(w, http.StatusOK, DownloadResponse{ID: id})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	job, err := s.ctrl.Snapshot(id)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// handleCancel always answers ok; unknown and finished jobs are ignored.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseJobID(r)
	if err != nil {
		respondWithError(w, statusFor(err), err.Error())
		return
	}
	s.ctrl.Cancel(id)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.ctrl.ListAll()
	if jobs == nil {
		jobs = []types.Job{}
	}
	respondWithJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleDrainEvents(w http.ResponseWriter, r *http.Request) {
	drained := s.ctrl.DrainEvents()
	out := make([]events.Envelope, 0, len(drained))
	for _, e := range drained {
		out = append(out, events.Wrap(e))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		respondWithJSON(w, http.StatusOK, []gallery.Item{})
		return
	}
	items, err := s.gallery.List()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []gallery.Item{}
	}
	respondWithJSON(w, http.StatusOK, items)
}

// startHTTPServer serves h on ln in the background.
func startHTTPServer(ln net.Listener, h http.Handler) *http.Server {
	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Debug("HTTP server error: %v", err)
		}
	}()
	return server
}
