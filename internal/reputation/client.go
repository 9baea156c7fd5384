// Package reputation integrates the external IP reputation oracle. The
// HTTP client maps the oracle's abuse-confidence response to a 0-10 score;
// Lookup adds caching and a bounded worker pool so a batch never issues
// more than a handful of concurrent calls and never fails because the
// oracle is unreachable.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Checker resolves a single IP address to an abuse score in [0,10].
type Checker interface {
	Check(ctx context.Context, ip string) (float64, error)
}

// ClientOptions configures the oracle HTTP client.
type ClientOptions struct {
	// BaseURL of the oracle API, e.g. "https://api.abuseipdb.com/api/v2".
	BaseURL string
	// APIKey sent in the Key header.
	APIKey string
	// Timeout per call. Defaults to 10s.
	Timeout time.Duration
	// MaxAgeDays bounds how old reports may be. Defaults to 90.
	MaxAgeDays int
	// Logger for warnings (optional).
	Logger *log.Logger
}

// Client is the AbuseIPDB-compatible oracle client.
type Client struct {
	baseURL    string
	apiKey     string
	maxAgeDays int
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates an oracle client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.abuseipdb.com/api/v2"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAgeDays == 0 {
		opts.MaxAgeDays = 90
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[reputation] ", log.LstdFlags)
	}
	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		maxAgeDays: opts.MaxAgeDays,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

type checkResponse struct {
	Data struct {
		AbuseConfidenceScore float64 `json:"abuseConfidenceScore"`
		IsWhitelisted        bool    `json:"isWhitelisted"`
		TotalReports         int     `json:"totalReports"`
	} `json:"data"`
}

// Check queries the oracle for one address. The response maps to a score:
// abuseConfidenceScore/10 capped at 10, forced to 0 when whitelisted, +1
// (capped at 10) when the address has more than five reports. A missing
// API key scores 0 without issuing a call.
func (c *Client) Check(ctx context.Context, ip string) (float64, error) {
	if ip == "" || c.apiKey == "" {
		return 0, nil
	}

	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", strconv.Itoa(c.maxAgeDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/check?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("check %s: %w", ip, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("check %s: oracle returned %d", ip, resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode check response for %s: %w", ip, err)
	}

	if body.Data.IsWhitelisted {
		return 0, nil
	}
	score := body.Data.AbuseConfidenceScore / 10
	if score > 10 {
		score = 10
	}
	if body.Data.TotalReports > 5 {
		score++
		if score > 10 {
			score = 10
		}
	}
	return score, nil
}
