package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/adscope/models"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "adscope API base URL")
	apiKey   = flag.String("api-key", "", "API key for authenticated requests")
	runs     = flag.Int("runs", 2, "Number of runs per keyword for averaging")
	country  = flag.String("country", "US", "Country code for every search")
	maxAds   = flag.Int("max-ads", 30, "maxAds for every search")
	scrolls  = flag.Int("scrolls", 3, "scrollCount for every search")
	keywords = flag.String("keywords", "running shoes,meal kit,vpn,skincare,mortgage", "Comma-separated keywords")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// --- Benchmark result types ---

type runResult struct {
	Run         int      `json:"run"`
	TotalMs     int64    `json:"total_ms"`
	ScrapeMs    int64    `json:"scrape_ms"`
	AdsFound    int      `json:"ads_found"`
	Scrolls     int      `json:"scrolls"`
	RateLimited bool     `json:"rate_limited"`
	Coverage    coverage `json:"coverage"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
}

// coverage is the share of ads (0-100) with each optional field filled.
type coverage struct {
	Advertiser float64 `json:"advertiser"`
	Landing    float64 `json:"landing_page"`
	Image      float64 `json:"preview_image"`
	StartDate  float64 `json:"start_date"`
	Copy       float64 `json:"ad_copy"`
	CTA        float64 `json:"cta"`
}

type keywordAverages struct {
	TotalMs  float64  `json:"total_ms"`
	AdsFound float64  `json:"ads_found"`
	Coverage coverage `json:"coverage"`
	Blocked  int      `json:"blocked_runs"`
}

type keywordResult struct {
	Keyword  string           `json:"keyword"`
	Runs     []runResult      `json:"runs"`
	Averages *keywordAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp      string          `json:"timestamp"`
	APIURL         string          `json:"api_url"`
	RunsPerKeyword int             `json:"runs_per_keyword"`
	Results        []keywordResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== adscope Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/kw:   %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure adscope is running (go run ./cmd/adscope)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		APIURL:         *apiURL,
		RunsPerKeyword: *runs,
	}

	for _, kw := range splitKeywords(*keywords) {
		fmt.Printf("Benchmarking %q ...\n", kw)
		kr := keywordResult{Keyword: kw}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkKeyword(kw, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case rr.RateLimited:
				fmt.Printf("BLOCKED  %dms  %d ads\n", rr.TotalMs, rr.AdsFound)
			default:
				fmt.Printf("OK  %dms  %d ads\n", rr.TotalMs, rr.AdsFound)
			}
			kr.Runs = append(kr.Runs, rr)
		}

		kr.Averages = computeAverages(kr.Runs)
		report.Results = append(report.Results, kr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkKeyword(keyword string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := models.ScrapeRequest{
		Keyword:     keyword,
		Country:     *country,
		MaxAds:      maxAds,
		ScrollCount: scrolls,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.ScrapeMs = sr.Timing.ScrapeMs
	rr.AdsFound = len(sr.Ads)
	rr.Scrolls = sr.Scrolls
	rr.RateLimited = sr.RateLimited
	rr.Coverage = fieldCoverage(sr.Ads)

	if sr.Error != nil {
		rr.Error = sr.Error.Message
	}

	return rr
}

// fieldCoverage reports how often each heuristic field resolved.
func fieldCoverage(ads []models.AdRecord) coverage {
	if len(ads) == 0 {
		return coverage{}
	}
	var c coverage
	for _, ad := range ads {
		if ad.AdvertiserName != "" && ad.AdvertiserName != models.UnknownAdvertiser {
			c.Advertiser++
		}
		if ad.LandingPageURL != "" {
			c.Landing++
		}
		if ad.PreviewImage != "" {
			c.Image++
		}
		if ad.AdStartDate != "" {
			c.StartDate++
		}
		if ad.AdCopy != "" {
			c.Copy++
		}
		if ad.CTAText != "" {
			c.CTA++
		}
	}
	n := float64(len(ads)) / 100
	c.Advertiser /= n
	c.Landing /= n
	c.Image /= n
	c.StartDate /= n
	c.Copy /= n
	c.CTA /= n
	return c
}

func computeAverages(runs []runResult) *keywordAverages {
	var successCount int
	var avg keywordAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		if r.RateLimited {
			avg.Blocked++
		}
		avg.TotalMs += float64(r.TotalMs)
		avg.AdsFound += float64(r.AdsFound)
		avg.Coverage.Advertiser += r.Coverage.Advertiser
		avg.Coverage.Landing += r.Coverage.Landing
		avg.Coverage.Image += r.Coverage.Image
		avg.Coverage.StartDate += r.Coverage.StartDate
		avg.Coverage.Copy += r.Coverage.Copy
		avg.Coverage.CTA += r.Coverage.CTA
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.AdsFound /= n
	avg.Coverage.Advertiser /= n
	avg.Coverage.Landing /= n
	avg.Coverage.Image /= n
	avg.Coverage.StartDate /= n
	avg.Coverage.Copy /= n
	avg.Coverage.CTA /= n
	return &avg
}

func printTable(results []keywordResult) {
	fmt.Println(strings.Repeat("─", 100))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Keyword\tAvg Latency\tAds\tAdvertiser\tLanding\tImage\tDate\tCopy\tCTA\tBlocked\n")
	fmt.Fprintf(w, "───────\t───────────\t───\t──────────\t───────\t─────\t────\t────\t───\t───────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\t-\t-\t-\t-\n", truncate(r.Keyword, 30))
			continue
		}
		a := r.Averages
		fmt.Fprintf(w, "%s\t%dms\t%.0f\t%.0f%%\t%.0f%%\t%.0f%%\t%.0f%%\t%.0f%%\t%.0f%%\t%d/%d\n",
			truncate(r.Keyword, 30),
			int64(a.TotalMs),
			a.AdsFound,
			a.Coverage.Advertiser,
			a.Coverage.Landing,
			a.Coverage.Image,
			a.Coverage.StartDate,
			a.Coverage.Copy,
			a.Coverage.CTA,
			a.Blocked, len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 100))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
