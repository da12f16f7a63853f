package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/adscope/cache"
	"github.com/use-agent/adscope/config"
	"github.com/use-agent/adscope/models"
	"github.com/use-agent/adscope/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeScraper answers from a per-keyword table.
type fakeScraper struct {
	mu      sync.Mutex
	results map[string]*models.ScrapeResult
	errs    map[string]error
	calls   []models.ScrapeRequest
	stats   models.SessionStats
}

func (f *fakeScraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *req)
	if err := f.errs[req.Keyword]; err != nil {
		return nil, err
	}
	if res, ok := f.results[req.Keyword]; ok {
		return res, nil
	}
	return &models.ScrapeResult{}, nil
}

func (f *fakeScraper) Stats() models.SessionStats { return f.stats }

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func ads(ids ...string) []models.AdRecord {
	out := make([]models.AdRecord, len(ids))
	for i, id := range ids {
		out[i] = models.AdRecord{AdID: id, AdvertiserName: "Brand " + id, PreviewURL: "https://www.facebook.com/ads/library/?id=" + id}
	}
	return out
}

func post(h gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/", h)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) models.ScrapeResponse {
	t.Helper()
	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestScrape_Success(t *testing.T) {
	sc := &fakeScraper{results: map[string]*models.ScrapeResult{
		"shoes": {Ads: ads("1", "2"), Scrolls: 3},
	}}
	w := post(Scrape(sc, nil), `{"keyword":"shoes","country":"gb","maxAds":10,"scrollCount":3}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.False(t, resp.RateLimited)
	assert.Equal(t, 2, resp.AdsFound)
	assert.Equal(t, 3, resp.Scrolls)
	assert.Equal(t, "1", resp.Ads[0].AdID)
	assert.Empty(t, resp.CacheStatus)

	require.Equal(t, 1, sc.callCount())
	assert.Equal(t, "GB", sc.calls[0].Country)
	assert.Equal(t, 10, sc.calls[0].Limit())
}

func TestScrape_RateLimitedIsOK(t *testing.T) {
	sc := &fakeScraper{results: map[string]*models.ScrapeResult{
		"shoes": {Ads: ads("1"), RateLimited: true},
	}}
	w := post(Scrape(sc, nil), `{"keyword":"shoes"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.True(t, resp.RateLimited)
	assert.Len(t, resp.Ads, 1)
}

func TestScrape_EmptyAdsSerializeAsArray(t *testing.T) {
	w := post(Scrape(&fakeScraper{}, nil), `{"keyword":"nothing"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ads":[]`)
}

func TestScrape_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"keyword":`},
		{"missing keyword", `{"country":"US"}`},
		{"blank keyword", `{"keyword":"   "}`},
		{"bad country", `{"keyword":"shoes","country":"USA"}`},
		{"maxAds too large", `{"keyword":"shoes","maxAds":501}`},
		{"negative scrolls", `{"keyword":"shoes","scrollCount":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{}
			w := post(Scrape(sc, nil), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
			assert.Equal(t, 0, sc.callCount())
		})
	}
}

func TestScrape_ErrorStatuses(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeBrowserCrash, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			sc := &fakeScraper{errs: map[string]error{"shoes": models.NewScrapeError(tt.code, "boom", nil)}}
			w := post(Scrape(sc, nil), `{"keyword":"shoes"}`)
			assert.Equal(t, tt.want, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestScrape_Cache(t *testing.T) {
	sc := &fakeScraper{results: map[string]*models.ScrapeResult{
		"shoes":   {Ads: ads("1")},
		"blocked": {Ads: ads("2"), RateLimited: true},
	}}
	cc := cache.New(10)
	defer cc.Close()
	h := Scrape(sc, cc)

	first := decode(t, post(h, `{"keyword":"shoes","max_age":60000}`))
	assert.Equal(t, "miss", first.CacheStatus)
	second := decode(t, post(h, `{"keyword":"Shoes","max_age":60000}`))
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, "1", second.Ads[0].AdID)
	assert.Equal(t, 1, sc.callCount())

	decode(t, post(h, `{"keyword":"shoes"}`))
	assert.Equal(t, 2, sc.callCount(), "no max_age bypasses the cache")

	decode(t, post(h, `{"keyword":"blocked","max_age":60000}`))
	decode(t, post(h, `{"keyword":"blocked","max_age":60000}`))
	assert.Equal(t, 4, sc.callCount(), "rate-limited results are not cached")
}

func TestHealth(t *testing.T) {
	sc := &fakeScraper{stats: models.SessionStats{MaxSessions: 2, ActiveSessions: 1}}
	r := gin.New()
	r.GET("/health", Health(sc, time.Now().Add(-time.Minute)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.SessionStats.MaxSessions)
	assert.Equal(t, Version, resp.Version)
	assert.NotEmpty(t, resp.Timestamp)

	sc.stats.ActiveSessions = 2
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestBatches_PostAndGet(t *testing.T) {
	sc := &fakeScraper{
		stats: models.SessionStats{MaxSessions: 2},
		results: map[string]*models.ScrapeResult{
			"shoes": {Ads: ads("1")},
			"boots": {Ads: ads("2", "3")},
		},
		errs: map[string]error{"hats": models.NewScrapeError(models.ErrCodeNavigation, "boom", nil)},
	}
	b := NewBatches(sc, config.BatchConfig{MaxKeywords: 20, JobTTL: time.Hour})
	events := make(chan *webhook.Event, 1)
	b.notify = func(url, secret string, ev *webhook.Event) {
		assert.Equal(t, "https://hooks.example.com/adscope", url)
		assert.Equal(t, "s3cret", secret)
		events <- ev
	}

	r := gin.New()
	r.POST("/batch/scrape", b.Post())
	r.GET("/batch/:id", b.Get())

	req := httptest.NewRequest(http.MethodPost, "/batch/scrape", strings.NewReader(
		`{"keywords":["shoes","boots","hats"],"country":"us","webhook_url":"https://hooks.example.com/adscope","webhook_secret":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var created models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.ID, "batch-"))
	assert.Equal(t, 3, created.Total)

	b.Wait()

	select {
	case ev := <-events:
		assert.Equal(t, webhook.EventBatchCompleted, ev.Type)
		assert.Equal(t, created.ID, ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("webhook not sent")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status models.BatchStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.BatchPartial, status.Status)
	assert.Equal(t, 3, status.Completed)
	require.Len(t, status.Results, 3)
	assert.Equal(t, "shoes", status.Results[0].Keyword)
	assert.True(t, status.Results[0].Success)
	assert.Equal(t, 2, status.Results[1].AdsFound)
	assert.False(t, status.Results[2].Success)
	assert.Equal(t, models.ErrCodeNavigation, status.Results[2].Error.Code)
}

func TestBatches_Validation(t *testing.T) {
	sc := &fakeScraper{}
	b := NewBatches(sc, config.BatchConfig{MaxKeywords: 2})
	h := b.Post()

	tests := []struct {
		name string
		body string
	}{
		{"no keywords", `{"keywords":[]}`},
		{"too many", `{"keywords":["a","b","c"]}`},
		{"blank keyword", `{"keywords":["a","  "]}`},
		{"bad country", `{"keywords":["a"],"country":"Germany"}`},
		{"bad webhook", `{"keywords":["a"],"webhook_url":"ftp://example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(h, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	b.Wait()
	assert.Equal(t, 0, sc.callCount())
}

func TestBatches_GetUnknown(t *testing.T) {
	b := NewBatches(&fakeScraper{}, config.BatchConfig{})
	r := gin.New()
	r.GET("/batch/:id", b.Get())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatches_Expire(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBatches(&fakeScraper{stats: models.SessionStats{MaxSessions: 1}}, config.BatchConfig{JobTTL: time.Hour})
	b.now = func() time.Time { return now }

	reqs := (&models.BatchRequest{Keywords: []string{"a"}}).ScrapeRequests()
	job, err := b.Submit(reqs, "", "")
	require.NoError(t, err)
	b.Wait()

	_, ok := b.Status(job.ID)
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	b.expire()
	_, ok = b.Status(job.ID)
	assert.False(t, ok)
}

// blockingScraper holds every scrape until its context ends.
type blockingScraper struct {
	started chan struct{}
}

func (s *blockingScraper) Scrape(ctx context.Context, _ *models.ScrapeRequest) (*models.ScrapeResult, error) {
	s.started <- struct{}{}
	<-ctx.Done()
	return nil, models.NewScrapeError(models.ErrCodeTimeout, "request canceled", ctx.Err())
}

func (s *blockingScraper) Stats() models.SessionStats { return models.SessionStats{MaxSessions: 1} }

func TestBatches_ShutdownCancelsRunningJobs(t *testing.T) {
	sc := &blockingScraper{started: make(chan struct{}, 1)}
	b := NewBatches(sc, config.BatchConfig{})
	b.notify = func(string, string, *webhook.Event) {}

	reqs := (&models.BatchRequest{Keywords: []string{"shoes"}}).ScrapeRequests()
	job, err := b.Submit(reqs, "", "")
	require.NoError(t, err)

	select {
	case <-sc.started:
	case <-time.After(time.Second):
		t.Fatal("scrape never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Shutdown(ctx), context.DeadlineExceeded)

	status, ok := b.Status(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.BatchFailed, status.Status)
	assert.Equal(t, 1, status.Completed)
	require.Len(t, status.Results, 1)
	assert.Equal(t, models.ErrCodeTimeout, status.Results[0].Error.Code)
}

func TestBatches_ShutdownWaitsForFinishedJobs(t *testing.T) {
	sc := &fakeScraper{stats: models.SessionStats{MaxSessions: 1}, results: map[string]*models.ScrapeResult{
		"shoes": {Ads: ads("1")},
	}}
	b := NewBatches(sc, config.BatchConfig{})

	reqs := (&models.BatchRequest{Keywords: []string{"shoes"}}).ScrapeRequests()
	job, err := b.Submit(reqs, "", "")
	require.NoError(t, err)

	require.NoError(t, b.Shutdown(context.Background()))

	status, ok := b.Status(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.BatchCompleted, status.Status)
}
