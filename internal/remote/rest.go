package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/pkg/utils"
)

// RESTStore talks to the hosted backend's PostgREST-style API. Writes are
// not retried; reads get a short retry with backoff since poll-driven
// callers tolerate latency but not spurious failures.
type RESTStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
	retry      utils.RetryConfig
}

// RESTConfig holds hosted store configuration.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewRESTStore creates a hosted store client.
func NewRESTStore(cfg RESTConfig, logger zerolog.Logger) *RESTStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RESTStore{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With().Str("component", "rest-store").Logger(),
		retry: utils.RetryConfig{
			MaxAttempts:   2,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2.0,
			// A malformed body will not improve on a second read.
			ShouldRetry: func(err error) bool {
				return !errors.Is(err, apperrors.ErrMalformedFeed)
			},
		},
	}
}

// Close is a no-op for the HTTP client.
func (r *RESTStore) Close() error {
	return nil
}

// Ping probes connectivity with a minimal profiles query. Any HTTP
// response counts as online, including auth rejections: the probe tests
// reachability, not authorization.
func (r *RESTStore) Ping(ctx context.Context) error {
	req, err := r.newRequest(ctx, http.MethodGet, "profiles", url.Values{"limit": {"1"}}, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperrors.NewStoreError("profiles", "ping", apperrors.ErrStoreUnavailable)
	}
	resp.Body.Close()
	return nil
}

// Orders returns the user's orders newest-first.
func (r *RESTStore) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	body, err := r.get(ctx, "orders", url.Values{
		"user_id": {"eq." + userID},
		"order":   {"created_at.desc"},
	})
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	gjson.ParseBytes(body).ForEach(func(_, row gjson.Result) bool {
		orders = append(orders, models.Order{
			ID:             row.Get("id").String(),
			InstrumentCode: row.Get("stock_code").String(),
			InstrumentName: row.Get("stock_name").String(),
			Side:           models.OrderSide(row.Get("side").String()),
			Price:          row.Get("price").Float(),
			Quantity:       row.Get("quantity").Int(),
			Status:         models.OrderStatus(row.Get("status").String()),
			CreatedAt:      row.Get("created_at").Time(),
		})
		return true
	})
	return orders, nil
}

// InsertOrder submits an order row. The backend's insert trigger handles
// fills and balance deltas.
func (r *RESTStore) InsertOrder(ctx context.Context, userID string, order models.Order) error {
	payload := map[string]interface{}{
		"id":         order.ID,
		"user_id":    userID,
		"stock_code": order.InstrumentCode,
		"stock_name": order.InstrumentName,
		"side":       order.Side,
		"price":      order.Price,
		"quantity":   order.Quantity,
		"status":     order.Status,
	}
	return r.post(ctx, "orders", payload)
}

// Positions returns the user's holdings.
func (r *RESTStore) Positions(ctx context.Context, userID string) ([]models.Position, error) {
	body, err := r.get(ctx, "positions", url.Values{"user_id": {"eq." + userID}})
	if err != nil {
		return nil, err
	}

	var positions []models.Position
	gjson.ParseBytes(body).ForEach(func(_, row gjson.Result) bool {
		positions = append(positions, models.Position{
			InstrumentCode: row.Get("stock_code").String(),
			InstrumentName: row.Get("stock_name").String(),
			Quantity:       row.Get("quantity").Int(),
			AverageCost:    row.Get("average_cost").Float(),
		})
		return true
	})
	return positions, nil
}

// Watchlist returns the user's watched codes.
func (r *RESTStore) Watchlist(ctx context.Context, userID string) ([]string, error) {
	body, err := r.get(ctx, "watchlists", url.Values{
		"user_id": {"eq." + userID},
		"select":  {"stock_code"},
	})
	if err != nil {
		return nil, err
	}

	var codes []string
	gjson.ParseBytes(body).ForEach(func(_, row gjson.Result) bool {
		codes = append(codes, row.Get("stock_code").String())
		return true
	})
	return codes, nil
}

// AddToWatchlist inserts a watchlist row.
func (r *RESTStore) AddToWatchlist(ctx context.Context, userID, code string) error {
	return r.post(ctx, "watchlists", map[string]interface{}{
		"user_id":    userID,
		"stock_code": code,
	})
}

// RemoveFromWatchlist deletes a watchlist row.
func (r *RESTStore) RemoveFromWatchlist(ctx context.Context, userID, code string) error {
	req, err := r.newRequest(ctx, http.MethodDelete, "watchlists", url.Values{
		"user_id":    {"eq." + userID},
		"stock_code": {"eq." + code},
	}, nil)
	if err != nil {
		return err
	}
	return r.do(req, "watchlists", "delete")
}

// News returns the newest items, newest-first.
func (r *RESTStore) News(ctx context.Context, limit int) ([]models.NewsItem, error) {
	body, err := r.get(ctx, "news", url.Values{
		"order": {"created_at.desc"},
		"limit": {fmt.Sprintf("%d", limit)},
	})
	if err != nil {
		return nil, err
	}

	var items []models.NewsItem
	gjson.ParseBytes(body).ForEach(func(_, row gjson.Result) bool {
		items = append(items, models.NewsItem{
			ID:     row.Get("id").String(),
			Title:  row.Get("title").String(),
			Time:   row.Get("created_at").Time(),
			URL:    row.Get("url").String(),
			Source: row.Get("source").String(),
			Type:   row.Get("type").String(),
		})
		return true
	})
	return items, nil
}

// Profile returns the user's profile row.
func (r *RESTStore) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	body, err := r.get(ctx, "profiles", url.Values{"user_id": {"eq." + userID}})
	if err != nil {
		return nil, err
	}

	rows := gjson.ParseBytes(body).Array()
	if len(rows) == 0 {
		return nil, apperrors.NewStoreError("profiles", "query", apperrors.ErrDataNotFound)
	}
	row := rows[0]
	return &models.Profile{
		UserID:      userID,
		Name:        row.Get("name").String(),
		CashBalance: row.Get("cash_balance").Float(),
	}, nil
}

func (r *RESTStore) newRequest(ctx context.Context, method, collection string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", r.baseURL, collection)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, apperrors.NewStoreError(collection, "building request", err)
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// get runs a read query with the short retry policy and returns the raw
// JSON array body.
func (r *RESTStore) get(ctx context.Context, collection string, query url.Values) ([]byte, error) {
	return utils.RetryWithResult(ctx, r.retry, func() ([]byte, error) {
		req, err := r.newRequest(ctx, http.MethodGet, collection, query, nil)
		if err != nil {
			return nil, err
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, apperrors.NewStoreError(collection, "query", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, apperrors.NewStoreError(collection, "query",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, apperrors.NewStoreError(collection, "read body", err)
		}
		if !gjson.ValidBytes(body) {
			return nil, apperrors.NewStoreError(collection, "decode", apperrors.ErrMalformedFeed)
		}
		return body, nil
	})
}

// post writes a row. Writes are never retried: the caller decides how to
// surface the failure.
func (r *RESTStore) post(ctx context.Context, collection string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperrors.NewStoreError(collection, "encode", err)
	}

	req, err := r.newRequest(ctx, http.MethodPost, collection, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return r.do(req, collection, "insert")
}

func (r *RESTStore) do(req *http.Request, collection, op string) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperrors.NewStoreError(collection, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return apperrors.NewStoreError(collection, op,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
