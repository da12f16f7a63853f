package models

import "sync"

// Batch limits.
const MaxBatchKeywords = 20

// Batch job states.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)

// BatchRequest is the payload for POST /api/v1/batch/scrape.
type BatchRequest struct {
	// Keywords is the list of search terms to scrape. Required.
	Keywords []string `json:"keywords"`

	// Country, MaxAds and ScrollCount apply to every keyword.
	Country     string `json:"country,omitempty"`
	MaxAds      *int   `json:"maxAds,omitempty"`
	ScrollCount *int   `json:"scrollCount,omitempty"`

	// WebhookURL receives a batch.completed event when the job finishes.
	WebhookURL    string `json:"webhook_url,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	APIKey string `json:"apiKey,omitempty"`
}

// ScrapeRequests expands the batch into one normalized request per keyword.
func (r *BatchRequest) ScrapeRequests() []*ScrapeRequest {
	reqs := make([]*ScrapeRequest, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		req := &ScrapeRequest{
			Keyword:     kw,
			Country:     r.Country,
			MaxAds:      r.MaxAds,
			ScrollCount: r.ScrollCount,
		}
		req.Defaults()
		reqs = append(reqs, req)
	}
	return reqs
}

// BatchResponse is the immediate response for POST /api/v1/batch/scrape.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchResult is the outcome for one keyword of a batch.
type BatchResult struct {
	Keyword string `json:"keyword"`
	*ScrapeResponse
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Results   []*BatchResult `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch scrape. Fields are guarded by mu
// because workers update the job while GET /batch/:id reads it.
type BatchJob struct {
	mu        sync.Mutex
	ID        string
	Status    string
	Total     int
	Completed int
	Results   []*BatchResult
	CreatedAt int64 // unix timestamp
}

// NewBatchJob creates a job in the processing state.
func NewBatchJob(id string, total int, createdAt int64) *BatchJob {
	return &BatchJob{
		ID:        id,
		Status:    BatchProcessing,
		Total:     total,
		Results:   make([]*BatchResult, total),
		CreatedAt: createdAt,
	}
}

// Record stores the result for keyword index idx.
func (j *BatchJob) Record(idx int, res *BatchResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results[idx] = res
	j.Completed++
}

// Finish sets the terminal status from the recorded results.
func (j *BatchJob) Finish() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	failed := 0
	for _, r := range j.Results {
		if r == nil || !r.Success {
			failed++
		}
	}
	switch {
	case failed == j.Total:
		j.Status = BatchFailed
	case failed > 0:
		j.Status = BatchPartial
	default:
		j.Status = BatchCompleted
	}
	return j.Status
}

// Snapshot returns a consistent copy for serialization.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]*BatchResult, len(j.Results))
	copy(results, j.Results)
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Results:   results,
	}
}
