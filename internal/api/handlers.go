package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/variantlab/variant-scraper/internal/jobs"
	"github.com/variantlab/variant-scraper/internal/models"
	"github.com/variantlab/variant-scraper/internal/variants"
)

// Extractor is the job-manager surface the HTTP layer needs.
type Extractor interface {
	ExtractURL(ctx context.Context, url string) (*models.Product, *variants.Verdict, error)
	ExtractHTML(ctx context.Context, html, title string, basePrice float64) (*variants.Verdict, error)
	CreateJob(ctx context.Context, urls []string, priority int) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, bool)
	ListJobs() []*jobs.Job
	GetProduct(ctx context.Context, asin string) (*models.Product, error)
}

type Handlers struct {
	extractor Extractor
	logger    *slog.Logger
}

func NewHandlers(extractor Extractor, logger *slog.Logger) *Handlers {
	return &Handlers{
		extractor: extractor,
		logger:    logger,
	}
}

// ExtractRequest asks for variant extraction from either a live URL or an
// already-rendered HTML document.
type ExtractRequest struct {
	URL       string  `json:"url,omitempty"`
	HTML      string  `json:"html,omitempty"`
	Title     string  `json:"title,omitempty"`
	BasePrice float64 `json:"base_price,omitempty"`
}

type ExtractResponse struct {
	Product *models.Product   `json:"product,omitempty"`
	Verdict *variants.Verdict `json:"verdict"`
}

// Extract handles synchronous variant extraction requests.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" && req.HTML == "" {
		h.respondError(w, http.StatusBadRequest, "either url or html is required")
		return
	}

	if req.HTML != "" {
		verdict, err := h.extractor.ExtractHTML(r.Context(), req.HTML, req.Title, req.BasePrice)
		if err != nil {
			h.logger.Error("extraction failed", "error", err)
			h.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.respondJSON(w, http.StatusOK, ExtractResponse{Verdict: verdict})
		return
	}

	product, verdict, err := h.extractor.ExtractURL(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("extraction failed", "error", err, "url", req.URL)
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, ExtractResponse{Product: product, Verdict: verdict})
}

// CreateJobRequest represents a batch extraction job request.
type CreateJobRequest struct {
	URLs     []string `json:"urls"`
	Priority int      `json:"priority"`
}

type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateJob handles batch job creation.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}

	job, err := h.extractor.CreateJob(r.Context(), req.URLs, req.Priority)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

// GetJob handles job status retrieval.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, ok := h.extractor.GetJob(jobID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs handles listing all jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.extractor.ListJobs())
}

// GetProduct returns a stored product with its extracted variants.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if asin == "" {
		h.respondError(w, http.StatusBadRequest, "asin is required")
		return
	}

	product, err := h.extractor.GetProduct(r.Context(), asin)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "asin", asin)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
