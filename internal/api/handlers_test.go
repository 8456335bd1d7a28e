package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/variant-scraper/internal/jobs"
	"github.com/variantlab/variant-scraper/internal/models"
	"github.com/variantlab/variant-scraper/internal/variants"
)

type stubExtractor struct {
	verdict *variants.Verdict
	product *models.Product
	job     *jobs.Job
	err     error
}

func (s *stubExtractor) ExtractURL(ctx context.Context, url string) (*models.Product, *variants.Verdict, error) {
	return s.product, s.verdict, s.err
}

func (s *stubExtractor) ExtractHTML(ctx context.Context, html, title string, basePrice float64) (*variants.Verdict, error) {
	return s.verdict, s.err
}

func (s *stubExtractor) CreateJob(ctx context.Context, urls []string, priority int) (*jobs.Job, error) {
	return s.job, s.err
}

func (s *stubExtractor) GetJob(id string) (*jobs.Job, bool) {
	return s.job, s.job != nil && s.job.ID == id
}

func (s *stubExtractor) ListJobs() []*jobs.Job {
	if s.job == nil {
		return nil
	}
	return []*jobs.Job{s.job}
}

func (s *stubExtractor) GetProduct(ctx context.Context, asin string) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.product != nil && s.product.ASIN == asin {
		return s.product, nil
	}
	return nil, nil
}

func newTestRouter(extractor Extractor) http.Handler {
	h := NewHandlers(extractor, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", h.Extract)
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{jobID}", h.GetJob)
		r.Get("/products/{asin}", h.GetProduct)
	})
	return r
}

func TestExtractFromHTML(t *testing.T) {
	extractor := &stubExtractor{
		verdict: &variants.Verdict{
			Variants: []variants.Variant{
				{Type: "color", Name: "Black", Price: 26.58},
			},
			Method:     variants.MethodRuleBased,
			Confidence: 0.85,
		},
	}
	router := newTestRouter(extractor)

	body, _ := json.Marshal(ExtractRequest{
		HTML:      "<html><body></body></html>",
		Title:     "Wireless Earbuds",
		BasePrice: 26.58,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExtractResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Verdict)
	assert.Len(t, resp.Verdict.Variants, 1)
	assert.Nil(t, resp.Product)
}

func TestExtractRequiresURLOrHTML(t *testing.T) {
	router := newTestRouter(&stubExtractor{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader([]byte(`{}`))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractReportsPipelineError(t *testing.T) {
	router := newTestRouter(&stubExtractor{err: errors.New("bot check not bypassed")})

	body, _ := json.Marshal(ExtractRequest{URL: "https://www.amazon.com/dp/B0ABCDEF12"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "bot check")
}

func TestCreateJob(t *testing.T) {
	extractor := &stubExtractor{job: &jobs.Job{ID: "job-1", Status: "pending"}}
	router := newTestRouter(extractor)

	body, _ := json.Marshal(CreateJobRequest{URLs: []string{"https://www.amazon.com/dp/B0ABCDEF12"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
}

func TestCreateJobRequiresURLs(t *testing.T) {
	router := newTestRouter(&stubExtractor{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader([]byte(`{"urls":[]}`))))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	router := newTestRouter(&stubExtractor{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProduct(t *testing.T) {
	extractor := &stubExtractor{
		product: &models.Product{
			ASIN:  "B0ABCDEF12",
			Title: "Wireless Earbuds",
			Variants: []variants.Variant{
				{Type: "color", Name: "Black", Price: 26.58},
			},
		},
	}
	router := newTestRouter(extractor)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/B0ABCDEF12", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var product models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	assert.Len(t, product.Variants, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/B0MISSING0", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubExtractor{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
