package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/config"
	"github.com/frankgibbs/algolearn-orb/internal/store/model"
)

// RESTClient implements Broker against a local order-routing bridge (an
// API sidecar in front of the brokerage session). Authentication with the
// brokerage itself is the bridge's problem; this client only carries an
// optional bearer token for the bridge.
type RESTClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

func NewRESTClient(cfg config.BrokerConfig) (*RESTClient, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("broker.api_url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse broker.api_url: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		token:      strings.TrimSpace(cfg.APIToken),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *RESTClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type bracketPayload struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Shares     int     `json:"shares"`
	EntryPrice float64 `json:"entry_price"`
	StopPrice  float64 `json:"stop_price"`
}

type bracketResponse struct {
	EntryOrderID int64 `json:"entry_order_id"`
	StopOrderID  int64 `json:"stop_order_id"`
}

func (c *RESTClient) PlaceBracket(ctx context.Context, req BracketRequest) (BracketResult, error) {
	payload := bracketPayload{
		Symbol:     req.Symbol,
		Direction:  string(req.Direction),
		Shares:     req.Shares,
		EntryPrice: req.EntryPrice,
		StopPrice:  req.StopPrice,
	}
	var resp bracketResponse
	if err := c.doRequest(ctx, http.MethodPost, "/orders/bracket", payload, &resp); err != nil {
		return BracketResult{}, err
	}
	if resp.EntryOrderID == 0 || resp.StopOrderID == 0 {
		return BracketResult{}, fmt.Errorf("bridge returned incomplete bracket ids: entry=%d stop=%d",
			resp.EntryOrderID, resp.StopOrderID)
	}
	return BracketResult{EntryOrderID: resp.EntryOrderID, StopOrderID: resp.StopOrderID}, nil
}

func (c *RESTClient) ModifyStop(ctx context.Context, stopOrderID int64, newPrice float64) error {
	payload := struct {
		StopPrice float64 `json:"stop_price"`
	}{StopPrice: newPrice}
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/modify", stopOrderID), payload, nil)
}

func (c *RESTClient) CancelOrder(ctx context.Context, orderID int64) error {
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/cancel", orderID), nil, nil)
}

type orderStatusResponse struct {
	State     string  `json:"state"`
	FillPrice float64 `json:"fill_price"`
}

func (c *RESTClient) OrderStatus(ctx context.Context, orderID int64) (OrderStatus, error) {
	var resp orderStatusResponse
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &resp); err != nil {
		return OrderStatus{}, err
	}
	state := OrderState(resp.State)
	switch state {
	case OrderPending, OrderFilled, OrderCancelled:
	default:
		return OrderStatus{}, fmt.Errorf("bridge returned unknown order state %q", resp.State)
	}
	return OrderStatus{State: state, FillPrice: resp.FillPrice}, nil
}

func (c *RESTClient) PlaceMarketClose(ctx context.Context, symbol string, direction model.Direction, shares int) (int64, error) {
	payload := struct {
		Symbol    string `json:"symbol"`
		Direction string `json:"direction"`
		Shares    int    `json:"shares"`
	}{Symbol: symbol, Direction: string(direction), Shares: shares}
	var resp struct {
		OrderID int64 `json:"order_id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/orders/market-close", payload, &resp); err != nil {
		return 0, err
	}
	if resp.OrderID == 0 {
		return 0, fmt.Errorf("bridge returned no order id for market close")
	}
	return resp.OrderID, nil
}

func (c *RESTClient) GetCompletedBar(ctx context.Context, symbol string, durationMinutes int) (Bar, error) {
	var bar Bar
	path := fmt.Sprintf("/bars/%s/completed?minutes=%d", url.PathEscape(symbol), durationMinutes)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &bar); err != nil {
		return Bar{}, err
	}
	if bar.High < bar.Low {
		return Bar{}, fmt.Errorf("bridge returned malformed bar for %s: high %.4f below low %.4f",
			symbol, bar.High, bar.Low)
	}
	return bar, nil
}

func (c *RESTClient) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		Price float64 `json:"price"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/quotes/"+url.PathEscape(symbol), nil, &resp); err != nil {
		return 0, err
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("bridge returned non-positive price %.4f for %s", resp.Price, symbol)
	}
	return resp.Price, nil
}

func (c *RESTClient) AccountValue(ctx context.Context) (float64, error) {
	var resp struct {
		NetLiquidation float64 `json:"net_liquidation"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/account", nil, &resp); err != nil {
		return 0, err
	}
	if resp.NetLiquidation <= 0 {
		return 0, fmt.Errorf("bridge returned non-positive account value %.2f", resp.NetLiquidation)
	}
	return resp.NetLiquidation, nil
}

func (c *RESTClient) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			return fmt.Errorf("bridge error: %s", resp.Status)
		}
		return fmt.Errorf("bridge error (%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}

func (c *RESTClient) resolveEndpoint(path string) (*url.URL, error) {
	trimmed := strings.TrimSpace(path)
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
