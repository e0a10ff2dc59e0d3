package bondora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client is the Bondora REST API client (Boundary Layer).
// It implements domain.Marketplace.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new API client from configuration.
func NewClient(cfg *infra.Config) *Client {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = BaseURLProduction
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	burst := cfg.API.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: baseURL,
		token:   cfg.API.Token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.API.RequestsPerSecond), burst),
		logger:  slog.Default().With("module", "bondora_client"),
	}
}

// SecondaryMarket lists secondary-market items matching filter.
func (c *Client) SecondaryMarket(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, error) {
	return c.getLoans(ctx, domain.OpGetSecondaryMarket, pathSecondaryMarket, filter)
}

// Investments lists the account's loan parts matching filter.
func (c *Client) Investments(ctx context.Context, filter domain.Filter) ([]domain.LoanSnapshot, error) {
	return c.getLoans(ctx, domain.OpGetInvestments, pathInvestments, filter)
}

// Bid places amount on each auction.
func (c *Client) Bid(ctx context.Context, auctionIDs []string, amount decimal.Decimal) (domain.SubmitResponse, error) {
	req := bidRequest{Bids: make([]bid, 0, len(auctionIDs))}
	for _, id := range auctionIDs {
		req.Bids = append(req.Bids, bid{AuctionID: id, Amount: number(amount), MinAmount: number(amount)})
	}
	return c.submit(ctx, domain.OpBid, pathBid, req)
}

// Buy purchases secondary-market items by id.
func (c *Client) Buy(ctx context.Context, ids []string) (domain.SubmitResponse, error) {
	return c.submit(ctx, domain.OpBuy, pathBuy, itemIDsRequest{ItemIDs: ids})
}

// Sell offers loan parts at the quoted prices.
func (c *Client) Sell(ctx context.Context, quotes []domain.PriceQuote) (domain.SubmitResponse, error) {
	req := sellRequest{Actions: make([]sellAction, 0, len(quotes))}
	for _, q := range quotes {
		req.Actions = append(req.Actions, sellAction{LoanPartID: q.LoanPartID, DesiredDiscountRate: number(q.Price)})
	}
	return c.submit(ctx, domain.OpSell, pathSell, req)
}

// Cancel withdraws secondary-market offers by item id.
func (c *Client) Cancel(ctx context.Context, ids []string) (domain.SubmitResponse, error) {
	return c.submit(ctx, domain.OpCancel, pathCancel, itemIDsRequest{ItemIDs: ids})
}

func (c *Client) getLoans(ctx context.Context, op, path string, filter domain.Filter) ([]domain.LoanSnapshot, error) {
	query := url.Values{}
	for k, v := range filter {
		query.Set(k, v)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError(op, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{Op: op, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unexpected response", slog.String("operation", op), slog.Int("status", resp.StatusCode), slog.String("body", truncate(bodyBytes)))
		return nil, &domain.StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	var env envelope[[]loanDTO]
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	if !env.Success && len(env.Errors) > 0 {
		return nil, fmt.Errorf("%s: api error: code=%d msg=%s", op, env.Errors[0].Code, env.Errors[0].Message)
	}

	loans := make([]domain.LoanSnapshot, 0, len(env.Payload))
	for _, l := range env.Payload {
		snap, issues := l.toDomain()
		if len(issues) > 0 {
			c.logger.Warn("Fields with unexpected shape treated as absent",
				slog.String("operation", op),
				slog.String("id", snap.ID),
				slog.Any("fields", issues),
			)
		}
		loans = append(loans, snap)
	}
	return loans, nil
}

// submit sends a write request. err is only set when no response was received.
func (c *Client) submit(ctx context.Context, op, path string, body interface{}) (domain.SubmitResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return domain.SubmitResponse{}, domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	bodyBytes, _ := io.ReadAll(resp.Body)

	out := domain.SubmitResponse{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests {
		out.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	if !out.IsSuccess() && !out.IsRateLimited() {
		c.logger.Debug("Write rejected", slog.String("operation", op), slog.Int("status", resp.StatusCode), slog.String("body", truncate(bodyBytes)))
	}
	return out, nil
}

// doRequest handles auth headers, pacing and serialization
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", infra.DefaultUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is absent or unusable.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
