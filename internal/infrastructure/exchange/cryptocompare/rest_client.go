package cryptocompare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"golang.org/x/time/rate"
)

const (
	DefaultRestURL    = "https://min-api.cryptocompare.com"
	allExchangesPath  = "/data/v3/all/exchanges"
	defaultRatePerSec = 5
)

// ExchangesClient lists every exchange and its pairs from the aggregator.
type ExchangesClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// ExchangesClientOptions configures ExchangesClient. Zero values pick defaults.
type ExchangesClientOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

func NewExchangesClient(opts ExchangesClientOptions) *ExchangesClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	return &ExchangesClient{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(opts.APIKey),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// allExchangesResp is the body of /data/v3/all/exchanges.
type allExchangesResp struct {
	Response string                  `json:"Response"`
	Message  string                  `json:"Message"`
	Data     map[string]exchangeInfo `json:"Data"`
}

type exchangeInfo struct {
	Pairs map[string][]string `json:"pairs"`
}

func (c *ExchangesClient) FetchExchangePairs(ctx context.Context) (port.ExchangePairs, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %v", model.ErrDataSource, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+allExchangesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDataSource, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Apikey "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cryptocompare request: %v", model.ErrDataSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: cryptocompare http %d: %s", model.ErrDataSource, resp.StatusCode, string(body))
	}

	var result allExchangesResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode exchanges: %v", model.ErrDataSource, err)
	}
	if strings.EqualFold(result.Response, "Error") {
		return nil, fmt.Errorf("%w: cryptocompare: %s", model.ErrDataSource, result.Message)
	}
	if result.Data == nil {
		return nil, fmt.Errorf("%w: cryptocompare: missing Data", model.ErrDataSource)
	}

	out := make(port.ExchangePairs, len(result.Data))
	for name, info := range result.Data {
		out[name] = info.Pairs
	}
	return out, nil
}

var _ port.SymbolSource = (*ExchangesClient)(nil)
