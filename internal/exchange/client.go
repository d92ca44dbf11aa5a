package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RESTClient talks to the Binance USD-M futures API. Market data endpoints
// are public; order endpoints are HMAC-SHA256 signed.
type RESTClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	stream     *TickStream // optional; serves ticks without a REST round-trip
	logger     zerolog.Logger
}

// NewRESTClient creates a client against the given base URL
// (production or testnet).
func NewRESTClient(apiKey, secretKey, baseURL string, logger zerolog.Logger) *RESTClient {
	return &RESTClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    NewRateLimiter(1200),
		logger:     logger,
	}
}

// AttachStream wires a websocket tick stream into the client. When the
// stream holds enough fresh ticks, FetchSnapshot uses them instead of the
// aggTrades endpoint.
func (c *RESTClient) AttachStream(s *TickStream) {
	c.stream = s
}

// apiError mirrors the exchange's error payload.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// FetchSnapshot gathers ticks, candles and depth for one cycle. A failing
// depth call degrades to an empty book rather than failing the snapshot;
// heuristics that need the book skip themselves. An unknown symbol fails
// explicitly.
func (c *RESTClient) FetchSnapshot(symbol string, tickLookback, candleLookback int) (*Snapshot, error) {
	ticks, err := c.fetchTicks(symbol, tickLookback)
	if err != nil {
		return nil, fmt.Errorf("fetch ticks: %w", err)
	}

	candles, err := c.fetchCandles(symbol, candleLookback)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	snap := &Snapshot{
		Symbol:  symbol,
		Ticks:   ticks,
		Candles: candles,
		Taken:   time.Now(),
	}

	book, err := c.fetchDepth(symbol, 20)
	if err != nil {
		c.logger.Warn().Err(err).Msg("depth fetch failed, continuing without book")
	} else {
		snap.Book = *book
	}

	return snap, nil
}

func (c *RESTClient) fetchTicks(symbol string, lookback int) ([]Tick, error) {
	if c.stream != nil {
		if ticks := c.stream.Recent(lookback); len(ticks) >= lookback {
			return ticks, nil
		}
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(lookback))

	c.limiter.Acquire(2, PriorityNormal)
	body, err := c.get("/fapi/v1/aggTrades?" + params.Encode())
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Price  string `json:"p"`
		Qty    string `json:"q"`
		Time   int64  `json:"T"`
		IsSell bool   `json:"m"` // buyer is maker -> aggressive sell
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse agg trades: %w", err)
	}

	ticks := make([]Tick, len(raw))
	for i, t := range raw {
		ticks[i] = Tick{
			Price:  parseFloat(t.Price),
			Volume: parseFloat(t.Qty),
			Time:   time.UnixMilli(t.Time),
		}
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
	return ticks, nil
}

func (c *RESTClient) fetchCandles(symbol string, lookback int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1m")
	params.Set("limit", strconv.Itoa(lookback))

	c.limiter.Acquire(1, PriorityNormal)
	body, err := c.get("/fapi/v1/klines?" + params.Encode())
	if err != nil {
		return nil, err
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	candles := make([]Candle, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 5 {
			return nil, fmt.Errorf("malformed kline row %d", i)
		}
		candles[i] = Candle{
			Time:  time.UnixMilli(int64(raw[0].(float64))),
			Open:  parseFloat(raw[1]),
			High:  parseFloat(raw[2]),
			Low:   parseFloat(raw[3]),
			Close: parseFloat(raw[4]),
		}
	}
	return candles, nil
}

func (c *RESTClient) fetchDepth(symbol string, limit int) (*OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	c.limiter.Acquire(5, PriorityNormal)
	body, err := c.get("/fapi/v1/depth?" + params.Encode())
	if err != nil {
		return nil, err
	}

	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse depth: %w", err)
	}

	book := &OrderBook{
		Bids: make([]BookLevel, 0, len(raw.Bids)),
		Asks: make([]BookLevel, 0, len(raw.Asks)),
	}
	for _, lvl := range raw.Bids {
		if len(lvl) < 2 {
			continue
		}
		book.Bids = append(book.Bids, BookLevel{Price: parseFloat(lvl[0]), Size: parseFloat(lvl[1])})
	}
	for _, lvl := range raw.Asks {
		if len(lvl) < 2 {
			continue
		}
		book.Asks = append(book.Asks, BookLevel{Price: parseFloat(lvl[0]), Size: parseFloat(lvl[1])})
	}
	return book, nil
}

// PlaceMarketOrder submits a market order and returns the fill. A rejection
// from the exchange comes back as *RejectedError.
func (c *RESTClient) PlaceMarketOrder(symbol, side string, quantity float64) (*Fill, error) {
	params := map[string]string{
		"symbol":           symbol,
		"side":             strings.ToUpper(side),
		"type":             "MARKET",
		"quantity":         strconv.FormatFloat(quantity, 'f', -1, 64),
		"newClientOrderId": "ctb-" + uuid.NewString()[:18],
		"newOrderRespType": "RESULT",
	}

	c.limiter.Acquire(1, PriorityCritical)
	body, err := c.signedPost("/fapi/v1/order", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID  int64  `json:"orderId"`
		AvgPrice string `json:"avgPrice"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}
	if resp.Status == "REJECTED" || resp.Status == "EXPIRED" {
		return nil, &RejectedError{Reason: "order status " + resp.Status}
	}

	return &Fill{Ticket: resp.OrderID, Price: parseFloat(resp.AvgPrice)}, nil
}

// ClosePosition submits an offsetting market order for the full open
// quantity. reduceOnly guarantees it cannot flip the position.
func (c *RESTClient) ClosePosition(symbol string, ticket int64, quantity float64) (*Fill, error) {
	pos, err := c.GetOpenPosition(symbol)
	if err != nil {
		return nil, fmt.Errorf("position lookup before close: %w", err)
	}
	if pos == nil {
		return nil, &RejectedError{Reason: "no open position to close"}
	}

	side := "SELL"
	if pos.Direction < 0 {
		side = "BUY"
	}

	params := map[string]string{
		"symbol":           symbol,
		"side":             side,
		"type":             "MARKET",
		"quantity":         strconv.FormatFloat(quantity, 'f', -1, 64),
		"reduceOnly":       "true",
		"newClientOrderId": "ctb-close-" + uuid.NewString()[:12],
		"newOrderRespType": "RESULT",
	}

	c.limiter.Acquire(1, PriorityCritical)
	body, err := c.signedPost("/fapi/v1/order", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		OrderID  int64  `json:"orderId"`
		AvgPrice string `json:"avgPrice"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse close response: %w", err)
	}
	if resp.Status == "REJECTED" || resp.Status == "EXPIRED" {
		return nil, &RejectedError{Reason: "close status " + resp.Status}
	}

	return &Fill{Ticket: resp.OrderID, Price: parseFloat(resp.AvgPrice)}, nil
}

// GetOpenPosition returns the broker's open position for the symbol, or nil
// when flat.
func (c *RESTClient) GetOpenPosition(symbol string) (*BrokerPosition, error) {
	params := map[string]string{"symbol": symbol}

	c.limiter.Acquire(5, PriorityCritical)
	body, err := c.signedGet("/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
		EntryPrice  string `json:"entryPrice"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse position risk: %w", err)
	}

	for _, p := range raw {
		if p.Symbol != symbol {
			continue
		}
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		dir := 1
		if amt < 0 {
			dir = -1
			amt = -amt
		}
		return &BrokerPosition{
			Direction:  dir,
			Quantity:   amt,
			EntryPrice: parseFloat(p.EntryPrice),
		}, nil
	}
	return nil, nil
}

// GetAccountBalance returns the free USDT balance.
func (c *RESTClient) GetAccountBalance() (float64, error) {
	c.limiter.Acquire(5, PriorityNormal)
	body, err := c.signedGet("/fapi/v2/balance", nil)
	if err != nil {
		return 0, err
	}

	var raw []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}

	for _, b := range raw {
		if b.Asset == "USDT" {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, nil
}

// ==================== HTTP plumbing ====================

func (c *RESTClient) get(path string) ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	return c.readBody(resp)
}

func (c *RESTClient) signedGet(path string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = c.signedValues(params).Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return c.readBody(resp)
}

func (c *RESTClient) signedPost(path string, params map[string]string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = c.signedValues(params).Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	return c.readBody(resp)
}

func (c *RESTClient) signedValues(params map[string]string) url.Values {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	values.Set("recvWindow", "5000")

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(values.Encode()))
	values.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	return values
}

func (c *RESTClient) readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
			// -2010/-2019/-4164: balance, margin and notional rejections
			if apiErr.Code == -2010 || apiErr.Code == -2019 || apiErr.Code == -4164 {
				return nil, &RejectedError{Reason: apiErr.Msg}
			}
			return nil, fmt.Errorf("API error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}
