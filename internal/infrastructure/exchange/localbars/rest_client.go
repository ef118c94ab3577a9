package localbars

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	getBarsPath    = "/get-bars"
)

// Client reads OHLC rows from the local bars server.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchBars calls GET /get-bars?e=&fsym=&tsym=&toTs=&limit=.
// Rows are positional [time, open, high, low, close]; values may be JSON
// numbers or numeric strings.
func (c *Client) FetchBars(ctx context.Context, q port.BarQuery) ([]port.BarRow, error) {
	params := url.Values{}
	params.Set("e", q.Exchange)
	params.Set("fsym", q.From)
	params.Set("tsym", q.To)
	params.Set("toTs", strconv.FormatInt(q.ToTs, 10))
	params.Set("limit", strconv.Itoa(q.Limit))

	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, getBarsPath, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDataSource, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bars request: %v", model.ErrDataSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: bars http %d: %s", model.ErrDataSource, resp.StatusCode, string(body))
	}

	var raw [][]decimal.NullDecimal
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode bars: %v", model.ErrDataSource, err)
	}

	rows := make([]port.BarRow, 0, len(raw))
	for i, r := range raw {
		if len(r) < 5 {
			return nil, fmt.Errorf("%w: bar row %d has %d fields", model.ErrDataSource, i, len(r))
		}
		row := make(port.BarRow, 5)
		for j := 0; j < 5; j++ {
			if !r[j].Valid {
				return nil, fmt.Errorf("%w: bar row %d field %d is null", model.ErrDataSource, i, j)
			}
			row[j] = r[j].Decimal.InexactFloat64()
		}
		row[0] = float64(r[0].Decimal.IntPart())
		rows = append(rows, row)
	}
	return rows, nil
}

var _ port.BarSource = (*Client)(nil)
