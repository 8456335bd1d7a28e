package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/variantlab/variant-scraper/internal/database"
	"github.com/variantlab/variant-scraper/internal/events"
	"github.com/variantlab/variant-scraper/internal/models"
	"github.com/variantlab/variant-scraper/internal/parser"
	"github.com/variantlab/variant-scraper/internal/queue"
	"github.com/variantlab/variant-scraper/internal/ratelimit"
	"github.com/variantlab/variant-scraper/internal/variants"
)

// Fetcher renders a product URL into page content for extraction. The cleanup
// function releases the underlying page once the pipeline is done with it.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*variants.PageContent, func(), error)
}

// Job tracks a batch of product URLs submitted through the API.
type Job struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	URLCount    int        `json:"url_count"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Errors      []string   `json:"errors,omitempty"`
}

// taskBatchSize bounds how many tasks a worker claims per queue wakeup.
const taskBatchSize = 10

type Manager struct {
	queue     queue.Queue
	batch     *queue.BatchQueue
	fetcher   Fetcher
	parser    *parser.ProductParser
	db        *database.DB
	store     *database.ProductStore
	publisher *events.Publisher
	pipeline  *variants.Pipeline
	limiter   ratelimit.RateLimiter
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

type ManagerOptions struct {
	Queue     queue.Queue
	Fetcher   Fetcher
	Parser    *parser.ProductParser
	DB        *database.DB
	Store     *database.ProductStore
	Publisher *events.Publisher
	Pipeline  *variants.Pipeline
	Limiter   ratelimit.RateLimiter
	Logger    *slog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		queue:     opts.Queue,
		batch:     queue.NewBatchQueue(opts.Queue, taskBatchSize),
		fetcher:   opts.Fetcher,
		parser:    opts.Parser,
		db:        opts.DB,
		store:     opts.Store,
		publisher: opts.Publisher,
		pipeline:  opts.Pipeline,
		limiter:   opts.Limiter,
		logger:    opts.Logger.With("component", "job_manager"),
		jobs:      make(map[string]*Job),
	}
}

// CreateJob registers a batch job and enqueues one task per URL.
func (m *Manager) CreateJob(ctx context.Context, urls []string, priority int) (*Job, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs given")
	}

	job := &Job{
		ID:        uuid.New().String(),
		Status:    "pending",
		URLCount:  len(urls),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	tasks := make([]*queue.Task, 0, len(urls))
	for _, url := range urls {
		asin, err := m.parser.ExtractASIN(url)
		if err != nil {
			m.recordTaskResult(job.ID, false, fmt.Sprintf("%s: %v", url, err))
			continue
		}

		tasks = append(tasks, &queue.Task{
			ID:        uuid.New().String(),
			JobID:     job.ID,
			URL:       url,
			ASIN:      asin,
			Priority:  priority,
			CreatedAt: time.Now(),
		})
	}
	if err := m.batch.PushBatch(tasks); err != nil {
		return nil, fmt.Errorf("failed to enqueue tasks: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "urls", len(urls))
	return job, nil
}

// GetJob returns a snapshot of the job's current state.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	snapshot.Errors = append([]string(nil), job.Errors...)
	return &snapshot, true
}

// ListJobs returns snapshots of all known jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		result = append(result, &snapshot)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// GetProduct loads a previously extracted product from storage.
func (m *Manager) GetProduct(ctx context.Context, asin string) (*models.Product, error) {
	if m.store == nil {
		return nil, fmt.Errorf("storage not configured")
	}
	return m.store.Get(ctx, asin)
}

// ExtractURL fetches one product page and runs the full pipeline
// synchronously, persisting and publishing on success.
func (m *Manager) ExtractURL(ctx context.Context, url string) (*models.Product, *variants.Verdict, error) {
	asin, err := m.parser.ExtractASIN(url)
	if err != nil {
		return nil, nil, err
	}

	content, cleanup, err := m.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer cleanup()

	product, err := m.parser.ParseProductPage(content.HTML, asin)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse page: %w", err)
	}
	product.URL = url

	verdict, err := m.pipeline.Extract(ctx, content, variants.ProductInfo{
		Title:     product.Title,
		BasePrice: product.Price.Amount,
	})
	if err != nil {
		return nil, nil, err
	}

	product.Variants = verdict.Variants

	if err := m.persist(ctx, product, verdict); err != nil {
		return nil, nil, err
	}

	return product, verdict, nil
}

// ExtractHTML runs the pipeline over raw HTML without any browser, storage,
// or event side effects. Used for offline extraction.
func (m *Manager) ExtractHTML(ctx context.Context, html, title string, basePrice float64) (*variants.Verdict, error) {
	return m.pipeline.Extract(ctx, &variants.PageContent{HTML: html}, variants.ProductInfo{
		Title:     title,
		BasePrice: basePrice,
	})
}

// persist writes the product, its variants, and the outbox event in one
// transaction. A nil store means persistence is disabled.
func (m *Manager) persist(ctx context.Context, product *models.Product, verdict *variants.Verdict) error {
	if m.store == nil || m.db == nil {
		return nil
	}

	return m.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := m.store.SaveWithTx(ctx, tx, product, verdict); err != nil {
			return err
		}

		if m.publisher == nil {
			return nil
		}
		return m.publisher.PublishVariantsExtractedTx(ctx, tx, &events.VariantsExtractedPayload{
			ASIN:       product.ASIN,
			Title:      product.Title,
			URL:        product.URL,
			BasePrice:  product.Price.Amount,
			Variants:   verdict.Variants,
			Method:     string(verdict.Method),
			Confidence: verdict.Confidence,
		})
	})
}

func (m *Manager) recordTaskResult(jobID string, ok bool, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, found := m.jobs[jobID]
	if !found {
		return
	}

	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
		job.Status = "running"
	}

	job.Processed++
	if ok {
		job.Succeeded++
	} else {
		job.Failed++
		if errMsg != "" && len(job.Errors) < 20 {
			job.Errors = append(job.Errors, errMsg)
		}
	}

	if job.Processed >= job.URLCount {
		now := time.Now()
		job.CompletedAt = &now
		if job.Failed == job.URLCount {
			job.Status = "failed"
		} else {
			job.Status = "completed"
		}
	}
}
