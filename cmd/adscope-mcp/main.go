package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/adscope/models"
)

func main() {
	apiURL := os.Getenv("ADSCOPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ADSCOPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ADSCOPE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"adscope",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeAdsTool := mcp.NewTool("scrape_ads",
		mcp.WithDescription("Search the public ad library for a keyword and return the active ads found: advertiser, landing page, creative image, start date, ad copy and call to action. Drives a headless browser, so a call can take a minute or more."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search term, e.g. a brand or product name"),
		),
		mcp.WithString("country",
			mcp.Description("Two-letter market code, or ALL (default: US)"),
		),
		mcp.WithNumber("max_ads",
			mcp.Description("Maximum number of ads to return (default: 50, max: 500)"),
		),
		mcp.WithNumber("scroll_count",
			mcp.Description("Number of scroll steps used to load more results (default: 5, max: 50)"),
		),
	)
	s.AddTool(scrapeAdsTool, handleScrapeAds(apiURL, apiKey))

	batchScrapeTool := mcp.NewTool("batch_scrape_ads",
		mcp.WithDescription("Search the ad library for several keywords and return the ads found for each."),
		mcp.WithArray("keywords",
			mcp.Required(),
			mcp.Description("List of search terms (max 20)"),
		),
		mcp.WithString("country",
			mcp.Description("Two-letter market code, or ALL (default: US)"),
		),
		mcp.WithNumber("max_ads",
			mcp.Description("Maximum number of ads per keyword (default: 50, max: 500)"),
		),
		mcp.WithNumber("scroll_count",
			mcp.Description("Number of scroll steps per keyword (default: 5, max: 50)"),
		),
	)
	s.AddTool(batchScrapeTool, handleBatchScrapeAds(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// optionalInt returns a pointer to the named argument if the caller set it.
func optionalInt(request mcp.CallToolRequest, name string, fallback int) *int {
	if _, ok := request.GetArguments()[name]; !ok {
		return nil
	}
	n := request.GetInt(name, fallback)
	return &n
}

// apiPost sends a POST request to the adscope API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string, every time.Duration) ([]byte, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != models.BatchProcessing {
				return body, nil
			}
		}
	}
}

func handleScrapeAds(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}

		payload := models.ScrapeRequest{
			Keyword:     keyword,
			Country:     request.GetString("country", ""),
			MaxAds:      optionalInt(request, "max_ads", models.DefaultMaxAds),
			ScrollCount: optionalInt(request, "scroll_count", models.DefaultScrollCount),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape request failed: %v", err)), nil
		}

		var resp models.ScrapeResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !resp.Success {
			return mcp.NewToolResultError(errorText(&resp)), nil
		}
		return mcp.NewToolResultText(formatAds(keyword, &resp)), nil
	}
}

func handleBatchScrapeAds(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keywords, err := request.RequireStringSlice("keywords")
		if err != nil {
			return mcp.NewToolResultError("keywords is required and must be an array of strings"), nil
		}

		payload := models.BatchRequest{
			Keywords:    keywords,
			Country:     request.GetString("country", ""),
			MaxAds:      optionalInt(request, "max_ads", models.DefaultMaxAds),
			ScrollCount: optionalInt(request, "scroll_count", models.DefaultScrollCount),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/scrape", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp models.BatchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil || batchResp.ID == "" {
			var failed models.ScrapeResponse
			if json.Unmarshal(respBody, &failed) == nil && failed.Error != nil {
				return mcp.NewToolResultError(errorText(&failed)), nil
			}
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID, 5*time.Second)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var status models.BatchStatusResponse
		if err := json.Unmarshal(resultBody, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}
		return mcp.NewToolResultText(formatBatch(&status)), nil
	}
}

func errorText(resp *models.ScrapeResponse) string {
	if resp.Error == nil {
		return "scrape failed"
	}
	return fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
}

// formatAds renders a summary line followed by the ads as indented JSON.
func formatAds(keyword string, resp *models.ScrapeResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Keyword: %s\nAds found: %d (scrolls: %d)\n", keyword, resp.AdsFound, resp.Scrolls)
	if resp.RateLimited {
		sb.WriteString("Warning: the ad library rate limited this search; results are partial.\n")
	}
	sb.WriteString("\n")

	data, err := json.MarshalIndent(resp.Ads, "", "  ")
	if err != nil {
		fmt.Fprintf(&sb, "failed to encode ads: %v\n", err)
		return sb.String()
	}
	sb.Write(data)
	return sb.String()
}

func formatBatch(status *models.BatchStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)

	for i, r := range status.Results {
		if r == nil || r.ScrapeResponse == nil {
			fmt.Fprintf(&sb, "--- [%d] no result ---\n\n", i+1)
			continue
		}
		if !r.Success {
			fmt.Fprintf(&sb, "--- [%d] %s FAILED: %s ---\n\n", i+1, r.Keyword, errorText(r.ScrapeResponse))
			continue
		}
		fmt.Fprintf(&sb, "--- [%d] %s ---\n%s\n\n", i+1, r.Keyword, formatAds(r.Keyword, r.ScrapeResponse))
	}
	return sb.String()
}
