// Package httpapi exposes the scraping control surface and read-only tender
// queries over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/A78Z/pmn-marches-publics/internal/domain"
	"github.com/A78Z/pmn-marches-publics/internal/ports"
	"github.com/A78Z/pmn-marches-publics/internal/usecase"
)

const (
	serviceName    = "PMN Marchés Publics API"
	serviceVersion = "1.0.0"

	defaultPageSize = 20
	maxPageSize     = 100
)

// Runner starts one scraping session.
type Runner interface {
	RunOnce(ctx context.Context) (domain.ScrapingResult, error)
}

// Controller inspects and interrupts the running session.
type Controller interface {
	Stop() bool
	Status() usecase.Status
}

// Classifier previews module routing.
type Classifier interface {
	Classify(title, description, category string) domain.ClassificationResult
	Modules() []domain.Module
	ModuleKeywords(module domain.Module) []string
}

// Deps wires the handlers.
type Deps struct {
	Runner         Runner
	Controller     Controller
	Tenders        ports.TenderRepository
	Classifier     Classifier
	AllowedOrigins []string
	Now            func() time.Time
	Logger         *slog.Logger
}

type server struct {
	runner     Runner
	controller Controller
	tenders    ports.TenderRepository
	classifier Classifier
	now        func() time.Time
	logger     *slog.Logger
}

// NewRouter builds the chi router with CORS and request logging.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	s := &server{
		runner:     deps.Runner,
		controller: deps.Controller,
		tenders:    deps.Tenders,
		classifier: deps.Classifier,
		now:        now,
		logger:     logger.With("component", "httpapi"),
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/scraping", func(r chi.Router) {
		r.Post("/trigger", s.trigger)
		r.Get("/status", s.status)
		r.Post("/stop", s.stop)
	})
	r.Route("/tenders", func(r chi.Router) {
		r.Get("/", s.listTenders)
		r.Get("/stats", s.stats)
		r.Get("/{reference}", s.getTender)
	})
	r.Route("/classification", func(r chi.Router) {
		r.Post("/preview", s.preview)
		r.Get("/modules", s.modules)
	})
	return r
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"service":   serviceName,
		"version":   serviceVersion,
	})
}

// trigger runs the session detached from the request so a dropped client
// does not abort it.
func (s *server) trigger(w http.ResponseWriter, r *http.Request) {
	result, err := s.runner.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case eris.Is(err, usecase.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "Un scraping est déjà en cours")
	case err != nil:
		s.logger.Error("manual scraping failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, result)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (s *server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *server) stop(w http.ResponseWriter, _ *http.Request) {
	message := "Aucun scraping en cours"
	stopped := s.controller.Stop()
	if stopped {
		message = "Scraping arrêté"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "stopped": stopped})
}

func (s *server) listTenders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.TenderQuery{
		Module:  domain.Module(q.Get("module")),
		Region:  domain.Region(q.Get("region")),
		Status:  domain.TenderStatus(q.Get("status")),
		Terms:   strings.Fields(q.Get("q")),
		OrderBy: q.Get("order"),
		Limit:   defaultPageSize,
	}
	if query.Module != "" && !query.Module.Valid() {
		writeError(w, http.StatusBadRequest, "unknown module "+string(query.Module))
		return
	}
	if query.Status == "" {
		query.Status = domain.StatusActive
	}
	if q.Get("status") == "all" {
		query.Status = ""
	}
	var err error
	if query.Limit, err = intParam(q.Get("limit"), defaultPageSize); err != nil || query.Limit <= 0 || query.Limit > maxPageSize {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	if query.Offset, err = intParam(q.Get("offset"), 0); err != nil || query.Offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a positive integer")
		return
	}
	query.Descending = q.Get("dir") == "desc"

	found, err := s.tenders.Query(r.Context(), query)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]tenderView, 0, len(found))
	for _, t := range found {
		out = append(out, newTenderView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "limit": query.Limit, "offset": query.Offset})
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.tenders.CountByModule(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"byModule": counts, "total": total})
}

func (s *server) getTender(w http.ResponseWriter, r *http.Request) {
	t, err := s.tenders.FindByReference(r.Context(), chi.URLParam(r, "reference"))
	if eris.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tender not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTenderView(t))
}

type previewRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, newClassificationView(s.classifier.Classify(req.Title, req.Description, req.Category)))
}

func (s *server) modules(w http.ResponseWriter, _ *http.Request) {
	type moduleView struct {
		Module   domain.Module `json:"module"`
		Keywords []string      `json:"keywords"`
	}
	out := make([]moduleView, 0, len(s.classifier.Modules()))
	for _, m := range s.classifier.Modules() {
		out = append(out, moduleView{Module: m, Keywords: s.classifier.ModuleKeywords(m)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
