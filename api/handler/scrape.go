package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/use-agent/adscope/cache"
	"github.com/use-agent/adscope/models"
)

// AdScraper runs ad-library scrapes. *scraper.Scraper implements it.
type AdScraper interface {
	Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResult, error)
	Stats() models.SessionStats
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age is set.
//  3. Scraper.Scrape → ads + rate-limit flag   (records scrape_ms)
//  4. Fill Timing, store in cache, return 200.
//
// A rate-limited scrape is a 200 with rateLimited set; only session faults
// produce error statuses.
func Scrape(sc AdScraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid JSON body: "+err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()})
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		useCache := cc != nil && req.MaxAge > 0
		cacheKey := ""
		if useCache {
			cacheKey = cache.Key(&req)
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, &resp)
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		scrapeStart := time.Now()
		result, err := sc.Scrape(c.Request.Context(), &req)
		scrapeMs := time.Since(scrapeStart).Milliseconds()

		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				ScrapeMs: scrapeMs,
			})
			return
		}

		// ── 4. Respond ──────────────────────────────────────────────
		resp := models.NewScrapeResponse(result)
		resp.Timing = models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			ScrapeMs: scrapeMs,
		}

		if useCache {
			stored := *resp
			cc.Set(cacheKey, &stored)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	scrapeErr := models.AsScrapeError(err)
	c.JSON(mapErrorToStatus(scrapeErr), errorResponse(scrapeErr, timing))
}

func errorResponse(e *models.ScrapeError, timing models.TimingInfo) *models.ScrapeResponse {
	return &models.ScrapeResponse{
		Success: false,
		Ads:     []models.AdRecord{},
		Error:   e.ToDetail(),
		Timing:  timing,
	}
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	default:
		return http.StatusInternalServerError // 500
	}
}
