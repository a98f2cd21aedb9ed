package ledger

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

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/pkg/httpx"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/utils"
)

// Submission states as reported by the anchor service.
const (
	StatePending   = "pending"
	StateConfirmed = "confirmed"
	StateFailed    = "failed"
)

// Status is the anchor service's view of one submission.
type Status struct {
	State       string `json:"status"`
	TxHash      string `json:"txHash,omitempty"`
	BlockHeight int64  `json:"blockHeight,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Client submits code metadata to the external distributed ledger and
// polls for confirmation. Submit is non-blocking from the caller's
// perspective: it returns as soon as the anchor service accepts the
// submission, long before the ledger confirms it.
type Client interface {
	Submit(ctx context.Context, codeID string, meta types.MetadataSnapshot) (string, error)
	PollStatus(ctx context.Context, submissionID string) (*Status, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeout := utils.GetEnvAsDuration("LEDGER_TIMEOUT", 10*time.Second, log)
	maxRetries := utils.GetEnvAsInt("LEDGER_MAX_RETRIES", 2, log)
	return Config{
		BaseURL:    strings.TrimSpace(os.Getenv("LEDGER_BASE_URL")),
		APIKey:     strings.TrimSpace(os.Getenv("LEDGER_API_KEY")),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv(log))
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing LEDGER_BASE_URL")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("client", "LedgerAnchorClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type submitRequest struct {
	CodeID       string    `json:"codeId"`
	DrugName     string    `json:"drugName"`
	BatchNumber  string    `json:"batchNumber"`
	Manufacturer string    `json:"manufacturer"`
	ExpiryDate   time.Time `json:"expiryDate"`
}

type submitResponse struct {
	SubmissionID string `json:"submissionId"`
}

func (c *client) Submit(ctx context.Context, codeID string, meta types.MetadataSnapshot) (string, error) {
	if c == nil || c.httpClient == nil {
		return "", fmt.Errorf("ledger client unavailable")
	}
	codeID = strings.TrimSpace(codeID)
	if codeID == "" {
		return "", fmt.Errorf("ledger: codeID required")
	}
	body := submitRequest{
		CodeID:       codeID,
		DrugName:     meta.DrugName,
		BatchNumber:  meta.BatchNumber,
		Manufacturer: meta.Manufacturer,
		ExpiryDate:   meta.ExpiryDate,
	}
	out, err := doJSON[submitResponse](c, ctx, http.MethodPost, c.cfg.BaseURL+"/anchors", body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SubmissionID) == "" {
		return "", fmt.Errorf("ledger: empty submissionId in response")
	}
	return out.SubmissionID, nil
}

func (c *client) PollStatus(ctx context.Context, submissionID string) (*Status, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("ledger client unavailable")
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return nil, fmt.Errorf("ledger: submissionID required")
	}
	out, err := doJSON[Status](c, ctx, http.MethodGet, c.cfg.BaseURL+"/anchors/"+submissionID, nil)
	if err != nil {
		return nil, err
	}
	switch out.State {
	case StatePending, StateConfirmed, StateFailed:
		return out, nil
	default:
		return nil, fmt.Errorf("ledger: unknown submission status %q", out.State)
	}
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "ledger: <nil error>"
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("ledger http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func doJSON[T any](c *client, ctx context.Context, method, urlStr string, body any) (*T, error) {
	backoff := 500 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := doJSONOnce[T](c, ctx, method, urlStr, body)
		if err == nil {
			return out, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.cfg.MaxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 5*time.Second))
		c.log.Warn("Ledger request retrying",
			"url", urlStr,
			"attempt", attempt+1,
			"sleep", sleepFor,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

func doJSONOnce[T any](c *client, ctx context.Context, method, urlStr string, body any) (*T, *http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp, fmt.Errorf("ledger: decode response: %w", err)
	}
	return &out, resp, nil
}
