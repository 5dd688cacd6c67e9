package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	MainnetBaseURL = "https://fapi.binance.com"
	TestnetBaseURL = "https://testnet.binancefuture.com"

	historyPageLimit = 1000
)

type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Timeout   time.Duration
}

// Client is a thin REST wrapper for Binance USDT-M futures. All signed
// calls carry a timestamp and an HMAC-SHA256 signature over the sorted
// query parameters; transport failures are retried with bounded backoff,
// exchange rejections are not.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	retry   RetryPolicy
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("binance api credentials are not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	baseURL := MainnetBaseURL
	if cfg.Testnet {
		baseURL = TestnetBaseURL
	}
	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		retry:   DefaultRetryPolicy(),
		log:     log.Named("BinanceClient"),
	}
	c.log.Info("binance client initialized", zap.Bool("testnet", cfg.Testnet))
	return c, nil
}

func (c *Client) Testnet() bool { return c.cfg.Testnet }

// Ping checks REST connectivity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/fapi/v1/ping", nil, false)
	return err
}

// GetKlines fetches raw candles, oldest first. Public endpoint.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/klines", params, false)
	if err != nil {
		return nil, err
	}

	var raw [][]any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode klines")
	}
	klines := make([]Kline, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 7 {
			return nil, errors.New("unexpected kline format")
		}
		klines = append(klines, Kline{
			OpenTime:  anyToInt64(entry[0]),
			Open:      anyToFloat(entry[1]),
			High:      anyToFloat(entry[2]),
			Low:       anyToFloat(entry[3]),
			Close:     anyToFloat(entry[4]),
			Volume:    anyToFloat(entry[5]),
			CloseTime: anyToInt64(entry[6]),
		})
	}
	return klines, nil
}

// GetAccountInfo returns account assets and per-symbol positions.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/fapi/v2/account", nil, true)
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := sonic.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(err, "decode account info")
	}
	return &info, nil
}

// GetAvailableBalance returns the available balance for the asset.
func (c *Client) GetAvailableBalance(ctx context.Context, asset string) (float64, error) {
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	for _, bal := range info.Assets {
		if bal.Asset != asset {
			continue
		}
		v, err := strconv.ParseFloat(bal.AvailableBalance, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse available balance %q", bal.AvailableBalance)
		}
		return v, nil
	}
	return 0, nil
}

// PlaceMarketOrder submits a market order. Quantity must already be
// rounded to the symbol's step size.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(quantity))
	return c.placeOrder(ctx, params)
}

// PlaceTakeProfit submits a reduce-only TAKE_PROFIT_MARKET order closing
// the entire remaining position at the stop price.
func (c *Client) PlaceTakeProfit(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "TAKE_PROFIT_MARKET")
	params.Set("stopPrice", formatFloat(stopPrice))
	params.Set("quantity", formatFloat(quantity))
	params.Set("reduceOnly", "true")
	params.Set("closePosition", "true")
	return c.placeOrder(ctx, params)
}

// PlaceStopLoss submits a reduce-only STOP_MARKET order closing the
// entire remaining position at the stop price.
func (c *Client) PlaceStopLoss(ctx context.Context, symbol, side string, quantity, stopPrice float64) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "STOP_MARKET")
	params.Set("stopPrice", formatFloat(stopPrice))
	params.Set("quantity", formatFloat(quantity))
	params.Set("reduceOnly", "true")
	params.Set("closePosition", "true")
	return c.placeOrder(ctx, params)
}

func (c *Client) placeOrder(ctx context.Context, params url.Values) (*Order, error) {
	body, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}
	var order Order
	if err := sonic.Unmarshal(body, &order); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}
	return &order, nil
}

// CancelOrder cancels an order by id. The "order not found" rejection is
// surfaced as-is; callers decide whether it counts as success.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	_, err := c.do(ctx, http.MethodDelete, "/fapi/v1/order", params, true)
	return err
}

// GetUserTrades fetches fills for one order.
func (c *Client) GetUserTrades(ctx context.Context, symbol string, orderID int64) ([]Fill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/userTrades", params, true)
	if err != nil {
		return nil, err
	}
	var fills []Fill
	if err := sonic.Unmarshal(body, &fills); err != nil {
		return nil, errors.Wrap(err, "decode user trades")
	}
	return fills, nil
}

// GetUserTradesHistory fetches all fills for the symbol since startTimeMs,
// paginating by fromId.
func (c *Client) GetUserTradesHistory(ctx context.Context, symbol string, startTimeMs int64) ([]Fill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(historyPageLimit))
	if startTimeMs > 0 {
		params.Set("startTime", strconv.FormatInt(startTimeMs, 10))
	}

	var fills []Fill
	for {
		body, err := c.do(ctx, http.MethodGet, "/fapi/v1/userTrades", params, true)
		if err != nil {
			return nil, err
		}
		var batch []Fill
		if err := sonic.Unmarshal(body, &batch); err != nil {
			return nil, errors.Wrap(err, "decode user trades")
		}
		if len(batch) == 0 {
			break
		}
		fills = append(fills, batch...)
		if len(batch) < historyPageLimit {
			break
		}
		params.Del("startTime")
		params.Set("fromId", strconv.FormatInt(batch[len(batch)-1].ID+1, 10))
	}
	return fills, nil
}

// GetIncomeHistory fetches income entries (funding fees and the like) for
// the symbol since startTimeMs, paginating by time.
func (c *Client) GetIncomeHistory(ctx context.Context, symbol, incomeType string, startTimeMs int64) ([]Income, error) {
	params := url.Values{}
	params.Set("incomeType", incomeType)
	params.Set("limit", strconv.Itoa(historyPageLimit))
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	if startTimeMs > 0 {
		params.Set("startTime", strconv.FormatInt(startTimeMs, 10))
	}

	var entries []Income
	for {
		body, err := c.do(ctx, http.MethodGet, "/fapi/v1/income", params, true)
		if err != nil {
			return nil, err
		}
		var batch []Income
		if err := sonic.Unmarshal(body, &batch); err != nil {
			return nil, errors.Wrap(err, "decode income history")
		}
		if len(batch) == 0 {
			break
		}
		entries = append(entries, batch...)
		if len(batch) < historyPageLimit {
			break
		}
		params.Set("startTime", strconv.FormatInt(batch[len(batch)-1].Time+1, 10))
	}
	return entries, nil
}

// GetSymbolInfo fetches exchange filters (tickSize, stepSize) for a symbol.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return nil, err
	}
	var info exchangeInfo
	if err := sonic.Unmarshal(body, &info); err != nil {
		return nil, errors.Wrap(err, "decode exchange info")
	}
	if len(info.Symbols) == 0 {
		return nil, errors.Errorf("symbol info not found for %s", symbol)
	}
	return &info.Symbols[0], nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, c.log, method+" "+path, func() error {
		query := ""
		if signed {
			query = c.sign(params)
		} else if params != nil {
			query = params.Encode()
		}
		reqURL := c.baseURL + path
		if query != "" {
			reqURL += "?" + query
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		if signed {
			req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		rb, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read response body")
		}
		if resp.StatusCode >= 400 {
			apiErr := &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(rb))}
			var payload apiErrorPayload
			if err := sonic.Unmarshal(rb, &payload); err == nil {
				apiErr.Code = payload.Code
				apiErr.Msg = payload.Msg
			}
			c.log.Error("binance api error",
				zap.String("path", path),
				zap.Int("status", apiErr.Status),
				zap.Int64("code", apiErr.Code),
				zap.String("msg", apiErr.Msg))
			return apiErr
		}
		body = rb
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// sign adds the timestamp and an HMAC-SHA256 hex signature over the
// key-sorted urlencoded parameters. url.Values.Encode sorts by key.
func (c *Client) sign(params url.Values) string {
	signedParams := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			signedParams.Add(k, v)
		}
	}
	signedParams.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	query := signedParams.Encode()
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func anyToFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func anyToInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
