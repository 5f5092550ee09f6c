// Package broker is the brokerage API boundary both processes talk
// through. It is generalized from the teacher's AlpacaTrader (doRequest,
// GetBalance, GetPositions, PlaceLimitOrder, CancelOrder, GetOrderStatus)
// into the option-centric, multi-leg shape spec §6 requires. TLS/
// transport detail and the broker's own backend are out of scope per
// spec §1; this package only defines and implements the narrow contract
// the rest of the engine depends on.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zerotype19/gekko3/internal/model"
)

// Quote is a bid/ask/mid snapshot for an option leg, including the
// greeks the strategy gates and Position Manager need.
type Quote struct {
	OptionSymbol string
	Bid          float64
	Ask          float64
	Delta        float64
	Gamma        float64
	Theta        float64
	Vega         float64
	ImpliedVol   float64
}

func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// HistoricalCandle is one warm-up bar, pre-dispatch into the indicator
// package's own Candle type (kept separate so broker stays decoupled
// from indicator's internal ring representation).
type HistoricalCandle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// AccountSnapshot is the subset of broker account state the Gate and
// Brain need.
type AccountSnapshot struct {
	Equity        float64
	BuyingPower   float64
	Cash          float64
}

// BrokerLegPosition is one leg of a broker-reported open position.
type BrokerLegPosition struct {
	OptionSymbol string
	Quantity     int
	Side         model.LegSide
	CostBasis    float64
}

// OrderStatus is the lifecycle state the brokerage reports for a
// submitted multi-leg order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderFilled   OrderStatus = "filled"
	OrderCanceled OrderStatus = "canceled"
	OrderRejected OrderStatus = "rejected"
)

// OrderReport is what PlaceMultiLegOrder and GetOrderStatus return.
type OrderReport struct {
	OrderID     string
	Status      OrderStatus
	FilledPrice float64
}

// MultiLegOrderRequest is the Gate-side request to submit one atomic
// multi-leg order, built per spec §4.H / §6.
type MultiLegOrderRequest struct {
	Symbol    model.Symbol
	OrderType string // "credit" | "debit"
	Price     float64
	Legs      []MultiLegOrderLeg
}

type MultiLegOrderLeg struct {
	OptionSymbol string
	Side         model.BrokerSide
	Quantity     int
}

// Client is the full brokerage contract: streaming-session creation and
// market data for the Brain, account/positions/order execution for the
// Gate. A single concrete client implements both so either process can
// be pointed at the same brokerage account.
type Client interface {
	// CreateStreamSession returns an opaque token for the Stream Ingestor
	// to open a persistent connection with (spec §4.D).
	CreateStreamSession(ctx context.Context) (token string, streamURL string, err error)

	VIX(ctx context.Context) (float64, error)
	ATMImpliedVol(ctx context.Context, symbol model.Symbol) (callIV, putIV float64, err error)
	History(ctx context.Context, symbol model.Symbol, days int) ([]HistoricalCandle, error)
	OptionChainExpirations(ctx context.Context, symbol model.Symbol) ([]time.Time, error)
	OptionQuote(ctx context.Context, optionSymbol string) (Quote, error)
	OptionQuotes(ctx context.Context, optionSymbols []string) (map[string]Quote, error)
	StrikeForDelta(ctx context.Context, symbol model.Symbol, expiration time.Time, optType model.OptionType, targetDelta float64) (float64, error)

	GetAccount(ctx context.Context) (AccountSnapshot, error)
	GetPositions(ctx context.Context) (map[model.Symbol][]BrokerLegPosition, error)
	PlaceMultiLegOrder(ctx context.Context, req MultiLegOrderRequest) (OrderReport, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (OrderReport, error)
}

// HTTPClient is the concrete brokerage implementation, generalized from
// AlpacaTrader's doRequest helper and header scheme.
type HTTPClient struct {
	apiKey    string
	secretKey string
	baseURL   string
	dataURL   string
	streamURL string
	http      *http.Client
}

func NewHTTPClient(apiKey, secretKey, baseURL, dataURL, streamURL string) *HTTPClient {
	return &HTTPClient{
		apiKey:    apiKey,
		secretKey: secretKey,
		baseURL:   baseURL,
		dataURL:   dataURL,
		streamURL: streamURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doJSON(ctx context.Context, method, fullURL string, body interface{}, timeout time.Duration) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("broker: marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(b)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("X-API-KEY-ID", c.apiKey)
	req.Header.Set("X-API-SECRET-KEY", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("broker: status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *HTTPClient) doForm(ctx context.Context, method, fullURL string, form url.Values, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("X-API-KEY-ID", c.apiKey)
	req.Header.Set("X-API-SECRET-KEY", c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("broker: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("broker: status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *HTTPClient) CreateStreamSession(ctx context.Context) (string, string, error) {
	body, err := c.doJSON(ctx, http.MethodPost, c.dataURL+"/v2/stream/session", nil, 5*time.Second)
	if err != nil {
		return "", "", err
	}
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("broker: parse session response: %w", err)
	}
	return parsed.Token, c.streamURL, nil
}

func (c *HTTPClient) VIX(ctx context.Context) (float64, error) {
	body, err := c.doJSON(ctx, http.MethodGet, c.dataURL+"/v2/indices/VIX/quote", nil, 5*time.Second)
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("broker: parse VIX response: %w", err)
	}
	return parsed.Value, nil
}

func (c *HTTPClient) ATMImpliedVol(ctx context.Context, symbol model.Symbol) (float64, float64, error) {
	body, err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v2/options/%s/atm-iv", c.dataURL, symbol), nil, 5*time.Second)
	if err != nil {
		return 0, 0, err
	}
	var parsed struct {
		CallIV float64 `json:"call_iv"`
		PutIV  float64 `json:"put_iv"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, 0, fmt.Errorf("broker: parse ATM IV response: %w", err)
	}
	return parsed.CallIV, parsed.PutIV, nil
}

func (c *HTTPClient) History(ctx context.Context, symbol model.Symbol, days int) ([]HistoricalCandle, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=1Min&days=%d", c.dataURL, symbol, days)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil, 30*time.Second)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Bars []struct {
			T string  `json:"t"`
			O float64 `json:"o"`
			H float64 `json:"h"`
			L float64 `json:"l"`
			C float64 `json:"c"`
			V float64 `json:"v"`
		} `json:"bars"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("broker: parse history response: %w", err)
	}
	out := make([]HistoricalCandle, 0, len(parsed.Bars))
	for _, b := range parsed.Bars {
		t, err := time.Parse(time.RFC3339, b.T)
		if err != nil {
			continue
		}
		out = append(out, HistoricalCandle{OpenTime: t, Open: b.O, High: b.H, Low: b.L, Close: b.C, Volume: b.V})
	}
	return out, nil
}

func (c *HTTPClient) OptionChainExpirations(ctx context.Context, symbol model.Symbol) ([]time.Time, error) {
	body, err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/v2/options/%s/expirations", c.dataURL, symbol), nil, 10*time.Second)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Expirations []string `json:"expirations"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("broker: parse expirations response: %w", err)
	}
	out := make([]time.Time, 0, len(parsed.Expirations))
	for _, e := range parsed.Expirations {
		t, err := time.Parse("2006-01-02", e)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *HTTPClient) OptionQuote(ctx context.Context, optionSymbol string) (Quote, error) {
	quotes, err := c.OptionQuotes(ctx, []string{optionSymbol})
	if err != nil {
		return Quote{}, err
	}
	q, ok := quotes[optionSymbol]
	if !ok {
		return Quote{}, fmt.Errorf("broker: no quote returned for %s", optionSymbol)
	}
	return q, nil
}

func (c *HTTPClient) OptionQuotes(ctx context.Context, optionSymbols []string) (map[string]Quote, error) {
	url := fmt.Sprintf("%s/v2/options/quotes?symbols=%s", c.dataURL, strings.Join(optionSymbols, ","))
	body, err := c.doJSON(ctx, http.MethodGet, url, nil, 5*time.Second)
	if err != nil {
		return nil, err
	}
	var parsed map[string]struct {
		Bid   float64 `json:"bid"`
		Ask   float64 `json:"ask"`
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
		IV    float64 `json:"iv"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("broker: parse option quotes response: %w", err)
	}
	out := make(map[string]Quote, len(parsed))
	for sym, q := range parsed {
		out[sym] = Quote{OptionSymbol: sym, Bid: q.Bid, Ask: q.Ask, Delta: q.Delta, Gamma: q.Gamma, Theta: q.Theta, Vega: q.Vega, ImpliedVol: q.IV}
	}
	return out, nil
}

func (c *HTTPClient) StrikeForDelta(ctx context.Context, symbol model.Symbol, expiration time.Time, optType model.OptionType, targetDelta float64) (float64, error) {
	cpField := "call"
	if optType == model.OptionPut {
		cpField = "put"
	}
	url := fmt.Sprintf("%s/v2/options/%s/strike-for-delta?expiration=%s&type=%s&delta=%.4f",
		c.dataURL, symbol, expiration.Format("2006-01-02"), cpField, targetDelta)
	body, err := c.doJSON(ctx, http.MethodGet, url, nil, 5*time.Second)
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Strike float64 `json:"strike"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("broker: parse strike-for-delta response: %w", err)
	}
	return parsed.Strike, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context) (AccountSnapshot, error) {
	body, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/account", nil, 5*time.Second)
	if err != nil {
		return AccountSnapshot{}, err
	}
	var parsed struct {
		Equity      string `json:"equity"`
		BuyingPower string `json:"buying_power"`
		Cash        string `json:"cash"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return AccountSnapshot{}, fmt.Errorf("broker: parse account response: %w", err)
	}
	equity, _ := strconv.ParseFloat(parsed.Equity, 64)
	buyingPower, _ := strconv.ParseFloat(parsed.BuyingPower, 64)
	cash, _ := strconv.ParseFloat(parsed.Cash, 64)
	return AccountSnapshot{Equity: equity, BuyingPower: buyingPower, Cash: cash}, nil
}

func (c *HTTPClient) GetPositions(ctx context.Context) (map[model.Symbol][]BrokerLegPosition, error) {
	body, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/positions", nil, 5*time.Second)
	if err != nil {
		return nil, err
	}
	var parsed []struct {
		Symbol     string `json:"symbol"`
		Underlying string `json:"underlying_symbol"`
		Quantity   string `json:"qty"`
		Side       string `json:"side"`
		CostBasis  string `json:"cost_basis"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("broker: parse positions response: %w", err)
	}
	out := make(map[model.Symbol][]BrokerLegPosition)
	for _, p := range parsed {
		qty, _ := strconv.Atoi(p.Quantity)
		costBasis, _ := strconv.ParseFloat(p.CostBasis, 64)
		side := model.LegBuy
		if strings.EqualFold(p.Side, "short") {
			side = model.LegSell
		}
		sym := model.Symbol(p.Underlying)
		out[sym] = append(out[sym], BrokerLegPosition{
			OptionSymbol: p.Symbol,
			Quantity:     qty,
			Side:         side,
			CostBasis:    costBasis,
		})
	}
	return out, nil
}

func (c *HTTPClient) PlaceMultiLegOrder(ctx context.Context, req MultiLegOrderRequest) (OrderReport, error) {
	form := url.Values{}
	form.Set("class", "multileg")
	form.Set("symbol", string(req.Symbol))
	form.Set("type", req.OrderType)
	form.Set("duration", "day")
	form.Set("price", fmt.Sprintf("%.2f", req.Price))
	for i, leg := range req.Legs {
		form.Set(fmt.Sprintf("option_symbol[%d]", i), leg.OptionSymbol)
		form.Set(fmt.Sprintf("side[%d]", i), string(leg.Side))
		form.Set(fmt.Sprintf("quantity[%d]", i), strconv.Itoa(leg.Quantity))
	}

	body, err := c.doForm(ctx, http.MethodPost, c.baseURL+"/v2/orders", form, 10*time.Second)
	if err != nil {
		return OrderReport{}, err
	}
	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderReport{}, fmt.Errorf("broker: parse order response: %w", err)
	}
	return OrderReport{OrderID: parsed.ID, Status: OrderStatus(parsed.Status)}, nil
}

func (c *HTTPClient) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, c.baseURL+"/v2/orders/"+orderID, nil, 10*time.Second)
	return err
}

func (c *HTTPClient) GetOrderStatus(ctx context.Context, orderID string) (OrderReport, error) {
	body, err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/v2/orders/"+orderID, nil, 5*time.Second)
	if err != nil {
		return OrderReport{}, err
	}
	var parsed struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		FilledPrice string `json:"filled_avg_price"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return OrderReport{}, fmt.Errorf("broker: parse order status response: %w", err)
	}
	filled, _ := strconv.ParseFloat(parsed.FilledPrice, 64)
	return OrderReport{OrderID: parsed.ID, Status: OrderStatus(parsed.Status), FilledPrice: filled}, nil
}

var _ Client = (*HTTPClient)(nil)
