// Package quote ingests raw quote batches from the external feed and
// normalizes them into domain entities.
package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
)

// RawQuote is one record of a feed batch, prior to normalization.
type RawQuote struct {
	Symbol        string
	ShortName     string
	Price         float64
	ChangePercent float64
	ChangeAmount  float64
	Volume        int64
	High          float64
	Low           float64
	Open          float64
	PrevClose     float64
}

// Client fetches quote batches from a Yahoo v7 style endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig holds quote client configuration.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a quote feed client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "quote-client").Logger(),
	}
}

// Fetch retrieves the quote batch for the given symbols. A response
// missing the expected envelope fails the whole batch: callers keep the
// prior cycle's state and retry on the next tick.
func (c *Client) Fetch(ctx context.Context, symbols []string) ([]RawQuote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s?symbols=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewFeedError(c.baseURL, "building request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewFeedError(c.baseURL, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewFeedError(c.baseURL,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), apperrors.ErrFeedUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFeedError(c.baseURL, "reading body", err)
	}

	return ParseBatch(body)
}

// ParseBatch decodes a feed response body into raw quote records. The
// envelope must carry quoteResponse.result; anything else is malformed
// and rejects the whole batch, never a partial one.
func ParseBatch(body []byte) ([]RawQuote, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewFeedError("", "invalid JSON", apperrors.ErrMalformedFeed)
	}

	result := gjson.GetBytes(body, "quoteResponse.result")
	if !result.Exists() || !result.IsArray() {
		return nil, apperrors.NewFeedError("", "missing quoteResponse.result", apperrors.ErrMalformedFeed)
	}

	var quotes []RawQuote
	result.ForEach(func(_, q gjson.Result) bool {
		symbol := q.Get("symbol").String()
		if symbol == "" {
			return true // skip unkeyed records
		}
		quotes = append(quotes, RawQuote{
			Symbol:        symbol,
			ShortName:     q.Get("shortName").String(),
			Price:         q.Get("regularMarketPrice").Float(),
			ChangePercent: q.Get("regularMarketChangePercent").Float(),
			ChangeAmount:  q.Get("regularMarketChange").Float(),
			Volume:        q.Get("regularMarketVolume").Int(),
			High:          q.Get("regularMarketDayHigh").Float(),
			Low:           q.Get("regularMarketDayLow").Float(),
			Open:          q.Get("regularMarketOpen").Float(),
			PrevClose:     q.Get("regularMarketPreviousClose").Float(),
		})
		return true
	})

	return quotes, nil
}
