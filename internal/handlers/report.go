package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/dataforge/ingest/internal/service"
	"github.com/dataforge/ingest/internal/store"
	"github.com/dataforge/ingest/internal/store/model"
)

const (
	defaultRunListLimit = 50
	defaultErrorsWindow = 24 * time.Hour
	defaultErrorsLimit  = 100
	defaultSummaryDays  = 7
)

type ReportHandler struct {
	service *service.ReportService
}

func NewReportHandler(s *service.ReportService) *ReportHandler {
	return &ReportHandler{service: s}
}

func (h *ReportHandler) RegisterRoutes(router chi.Router) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/checks", h.GetRunChecks)
		r.Get("/runs/{id}/errors", h.GetRunErrors)
		r.Get("/errors", h.RecentErrors)
		r.Get("/summary", h.RunSummary)
		r.Get("/weather/latest", h.LatestWeather)
	})
}

func (h *ReportHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := service.RunFilter{Limit: defaultRunListLimit}
	if v := r.URL.Query().Get("source_type"); v != "" {
		filter.SourceType = model.SourceType(v)
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = model.RunStatus(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	runs, err := h.service.ListRuns(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = render.Render(w, r, RunListReply{Runs: runs})
}

func (h *ReportHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	_ = render.Render(w, r, RunReply{Run: *run})
}

func (h *ReportHandler) GetRunChecks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	checks, err := h.service.RunChecks(r.Context(), id)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	_ = render.Render(w, r, QualityCheckListReply{Checks: checks})
}

func (h *ReportHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}

	records, err := h.service.RunErrors(r.Context(), id)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	_ = render.Render(w, r, ErrorListReply{Errors: records})
}

func (h *ReportHandler) RecentErrors(w http.ResponseWriter, r *http.Request) {
	window := defaultErrorsWindow
	if v := r.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	records, err := h.service.RecentErrors(r.Context(), window, defaultErrorsLimit)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	_ = render.Render(w, r, ErrorListReply{Errors: records})
}

func (h *ReportHandler) RunSummary(w http.ResponseWriter, r *http.Request) {
	days := defaultSummaryDays
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	since := time.Now().AddDate(0, 0, -days)
	rows, err := h.service.RunSummary(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = render.Render(w, r, RunSummaryReply{Summary: rows})
}

func (h *ReportHandler) LatestWeather(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.LatestWeather(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = render.Render(w, r, WeatherListReply{Metrics: metrics})
}

func renderServiceError(w http.ResponseWriter, err error) {
	var notFound *service.ErrRunNotFound
	var badRequest *service.ErrInvalidQuery
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &badRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type RunReply struct {
	Run model.Run `json:"run"`
}

type RunListReply struct {
	Runs model.RunList `json:"runs"`
}

type QualityCheckListReply struct {
	Checks model.QualityCheckList `json:"checks"`
}

type ErrorListReply struct {
	Errors model.ErrorRecordList `json:"errors"`
}

type RunSummaryReply struct {
	Summary []store.RunSummaryRow `json:"summary"`
}

type WeatherListReply struct {
	Metrics []model.WeatherMetric `json:"metrics"`
}

func (RunReply) Render(w http.ResponseWriter, r *http.Request) error          { return nil }
func (RunListReply) Render(w http.ResponseWriter, r *http.Request) error      { return nil }
func (QualityCheckListReply) Render(w http.ResponseWriter, r *http.Request) error { return nil }
func (ErrorListReply) Render(w http.ResponseWriter, r *http.Request) error    { return nil }
func (RunSummaryReply) Render(w http.ResponseWriter, r *http.Request) error   { return nil }
func (WeatherListReply) Render(w http.ResponseWriter, r *http.Request) error  { return nil }
