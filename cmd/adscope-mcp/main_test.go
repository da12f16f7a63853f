package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/adscope/models"
)

func TestFormatAds(t *testing.T) {
	resp := models.NewScrapeResponse(&models.ScrapeResult{
		Ads:         []models.AdRecord{{AdID: "123456789", AdvertiserName: "Acme Co"}},
		RateLimited: true,
		Scrolls:     2,
	})

	out := formatAds("shoes", resp)
	assert.Contains(t, out, "Keyword: shoes")
	assert.Contains(t, out, "Ads found: 1 (scrolls: 2)")
	assert.Contains(t, out, "rate limited")
	assert.Contains(t, out, `"ad_id": "123456789"`)
}

func TestFormatBatch(t *testing.T) {
	status := &models.BatchStatusResponse{
		ID:        "batch-1",
		Status:    models.BatchPartial,
		Completed: 2,
		Total:     3,
		Results: []*models.BatchResult{
			{Keyword: "shoes", ScrapeResponse: models.NewScrapeResponse(&models.ScrapeResult{})},
			{Keyword: "hats", ScrapeResponse: &models.ScrapeResponse{Error: &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: "slow"}}},
			nil,
		},
	}

	out := formatBatch(status)
	assert.Contains(t, out, "Batch batch-1: partial (2/3 completed)")
	assert.Contains(t, out, "[1] shoes")
	assert.Contains(t, out, "hats FAILED: [SCRAPE_TIMEOUT] slow")
	assert.Contains(t, out, "[3] no result")
}

func TestPollJobCompletion(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"batch-1","status":"completed"}`))
	}))
	defer srv.Close()

	body, err := pollJobCompletion(context.Background(), srv.Client(), srv.URL, "k", "/api/v1/batch/batch-1", time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"completed"`)
	assert.Equal(t, int32(3), polls.Load())
}
