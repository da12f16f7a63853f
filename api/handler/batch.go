package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/use-agent/adscope/config"
	"github.com/use-agent/adscope/models"
	"github.com/use-agent/adscope/webhook"
	"golang.org/x/sync/errgroup"
)

// Notifier delivers a webhook event. webhook.DeliverAsync is the default.
type Notifier func(url, secret string, event *webhook.Event)

// Batches runs multi-keyword scrapes in the background and keeps their
// results in memory until they expire.
type Batches struct {
	sc          AdScraper
	jobs        sync.Map // id → *models.BatchJob
	maxKeywords int
	ttl         time.Duration
	notify      Notifier
	now         func() time.Time
	wg          sync.WaitGroup

	// base parents every batch scrape; cancel stops them on shutdown.
	base   context.Context
	cancel context.CancelFunc
}

// NewBatches creates a batch job store backed by sc.
func NewBatches(sc AdScraper, cfg config.BatchConfig) *Batches {
	maxKeywords := cfg.MaxKeywords
	if maxKeywords <= 0 || maxKeywords > models.MaxBatchKeywords {
		maxKeywords = models.MaxBatchKeywords
	}
	ttl := cfg.JobTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	base, cancel := context.WithCancel(context.Background())
	return &Batches{
		base:        base,
		cancel:      cancel,
		sc:          sc,
		maxKeywords: maxKeywords,
		ttl:         ttl,
		notify:      webhook.DeliverAsync,
		now:         time.Now,
	}
}

// RunJanitor expires old jobs every 5 minutes until ctx is done.
func (b *Batches) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.expire()
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until every running batch has finished.
func (b *Batches) Wait() {
	b.wg.Wait()
}

// Shutdown waits for running batches to finish. If ctx ends first, the
// remaining scrapes are canceled and Shutdown returns once they unwind.
func (b *Batches) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}

func (b *Batches) expire() {
	cutoff := b.now().Add(-b.ttl).Unix()
	b.jobs.Range(func(key, value any) bool {
		job := value.(*models.BatchJob)
		if job.CreatedAt < cutoff {
			b.jobs.Delete(key)
		}
		return true
	})
}

// Post returns a handler for POST /api/v1/batch/scrape.
// It validates every keyword up front, creates a job, and scrapes the
// keywords in the background.
func (b *Batches) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid JSON body: "+err.Error(), err), models.TimingInfo{})
			return
		}

		reqs, err := b.validate(&req)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		job, err := b.Submit(reqs, req.WebhookURL, req.WebhookSecret)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.ID,
			Status: models.BatchProcessing,
			Total:  job.Total,
		})
	}
}

// Get returns a handler for GET /api/v1/batch/:id.
func (b *Batches) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := b.Status(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "batch job not found", nil), models.TimingInfo{})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// Status returns a snapshot of job id.
func (b *Batches) Status(id string) (models.BatchStatusResponse, bool) {
	val, ok := b.jobs.Load(id)
	if !ok {
		return models.BatchStatusResponse{}, false
	}
	return val.(*models.BatchJob).Snapshot(), true
}

func (b *Batches) validate(req *models.BatchRequest) ([]*models.ScrapeRequest, error) {
	if len(req.Keywords) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "keywords is required", nil)
	}
	if len(req.Keywords) > b.maxKeywords {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("maximum %d keywords per batch", b.maxKeywords), nil)
	}
	if req.WebhookURL != "" {
		u, err := url.Parse(req.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "webhook_url must be an absolute http(s) URL", err)
		}
	}

	reqs := req.ScrapeRequests()
	for i, r := range reqs {
		if err := r.Validate(); err != nil {
			se := models.AsScrapeError(err)
			return nil, models.NewScrapeError(se.Code, fmt.Sprintf("keywords[%d]: %s", i, se.Message), nil)
		}
	}
	return reqs, nil
}

// Submit registers a job for reqs and starts it. The requests must be
// normalized and valid.
func (b *Batches) Submit(reqs []*models.ScrapeRequest, webhookURL, webhookSecret string) (*models.BatchJob, error) {
	if len(reqs) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "keywords is required", nil)
	}
	job := models.NewBatchJob("batch-"+uuid.NewString(), len(reqs), b.now().Unix())
	b.jobs.Store(job.ID, job)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(job, reqs, webhookURL, webhookSecret)
	}()
	return job, nil
}

// run scrapes every keyword with concurrency limited to the scraper's
// session count, then fires the completion webhook.
func (b *Batches) run(job *models.BatchJob, reqs []*models.ScrapeRequest, webhookURL, webhookSecret string) {
	limit := b.sc.Stats().MaxSessions
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		g.Go(func() error {
			job.Record(i, &models.BatchResult{
				Keyword:        req.Keyword,
				ScrapeResponse: scrapeOne(b.base, b.sc, req),
			})
			return nil
		})
	}
	_ = g.Wait()

	status := job.Finish()
	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"total", job.Total,
	)

	if webhookURL != "" {
		b.notify(webhookURL, webhookSecret, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     job.ID,
			Timestamp: b.now().Unix(),
			Data:      job.Snapshot(),
		})
	}
}

// scrapeOne performs a single scrape for one keyword of a batch. Batch
// work outlives the HTTP request that created it, so ctx is the store's
// base context rather than the request's.
func scrapeOne(ctx context.Context, sc AdScraper, req *models.ScrapeRequest) *models.ScrapeResponse {
	totalStart := time.Now()

	result, err := sc.Scrape(ctx, req)
	timing := models.TimingInfo{
		TotalMs:  time.Since(totalStart).Milliseconds(),
		ScrapeMs: time.Since(totalStart).Milliseconds(),
	}
	if err != nil {
		slog.Warn("batch keyword failed", "keyword", strings.TrimSpace(req.Keyword), "error", err)
		return errorResponse(models.AsScrapeError(err), timing)
	}

	resp := models.NewScrapeResponse(result)
	resp.Timing = timing
	return resp
}
