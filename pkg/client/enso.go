package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"enso-swap/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultBaseURL is the public routing service endpoint.
	DefaultBaseURL = "https://api.enso.finance/api/v1"

	defaultTimeout = 15 * time.Second

	// Transient failures are retried twice before an error is surfaced.
	maxRetries = 2
	retryDelay = 500 * time.Millisecond

	metadataCacheTTL = 10 * time.Minute
	priceCacheTTL    = time.Minute
)

// EnsoClient wraps the routing/quoting HTTP API: same-chain routes, bridge
// bundles, approval lookups, balances, token metadata and USD prices.
type EnsoClient struct {
	http    *fasthttp.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
	cache   *gocache.Cache
}

// NewEnsoClient creates a client for the given API endpoint. The apiKey is
// an opaque credential forwarded on every request.
func NewEnsoClient(baseURL, apiKey string, logger *zap.Logger) *EnsoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &EnsoClient{
		http:    &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: defaultTimeout,
		logger:  logger.Named("EnsoClient"),
		cache:   gocache.New(metadataCacheTTL, 2*metadataCacheTTL),
	}
}

// GetRouteData fetches a same-chain route: expected output, priced path
// and the transaction to sign.
func (c *EnsoClient) GetRouteData(ctx context.Context, req *types.SwapRequest) (*types.RouteData, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid route request: %w", err)
	}

	strategy := req.RoutingStrategy
	if strategy == "" {
		strategy = types.StrategyRouter
	}
	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", req.ChainID))
	q.Set("fromAddress", req.FromAddress)
	q.Set("tokenIn", req.TokenIn)
	q.Set("tokenOut", req.TokenOut)
	q.Set("amountIn", req.AmountIn.String())
	q.Set("slippage", fmt.Sprintf("%d", req.SlippageBps))
	q.Set("routingStrategy", string(strategy))
	if req.Receiver != "" {
		q.Set("receiver", req.Receiver)
	}
	if req.Spender != "" {
		q.Set("spender", req.Spender)
	}
	if req.ReferralCode != "" {
		q.Set("referralCode", req.ReferralCode)
	}

	var route types.RouteData
	if err := c.getJSON(ctx, "/shortcuts/route?"+q.Encode(), &route); err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return &route, nil
}

// GetBundleData submits a bridge bundle and returns the single transaction
// covering all of its steps.
func (c *EnsoClient) GetBundleData(ctx context.Context, bundle *types.Bundle) (*types.BundleData, error) {
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}

	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", bundle.ChainID))
	q.Set("fromAddress", bundle.FromAddress)
	q.Set("routingStrategy", string(types.StrategyDelegate))

	body, err := json.Marshal(bundle.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}

	var data types.BundleData
	if err := c.postJSON(ctx, "/shortcuts/bundle?"+q.Encode(), body, &data); err != nil {
		return nil, fmt.Errorf("failed to get bundle: %w", err)
	}
	return &data, nil
}

// GetApprovalData looks up the spender for a token and the approval
// transaction authorizing exactly amount.
func (c *EnsoClient) GetApprovalData(ctx context.Context, chainID int64, fromAddress, token, amount string) (*types.ApprovalData, error) {
	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", chainID))
	q.Set("fromAddress", fromAddress)
	q.Set("tokenAddress", token)
	q.Set("amount", amount)

	var approval types.ApprovalData
	if err := c.getJSON(ctx, "/wallet/approve?"+q.Encode(), &approval); err != nil {
		return nil, fmt.Errorf("failed to get approval data: %w", err)
	}
	return &approval, nil
}

// GetBalances fetches the account's token balances on a chain. Native
// balances arrive under the API's own sentinel and are normalized to the
// canonical native address here, at the boundary.
func (c *EnsoClient) GetBalances(ctx context.Context, chainID int64, eoaAddress string) ([]types.Balance, error) {
	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", chainID))
	q.Set("eoaAddress", eoaAddress)
	q.Set("useEoa", "true")

	var balances []types.Balance
	if err := c.getJSON(ctx, "/wallet/balances?"+q.Encode(), &balances); err != nil {
		return nil, fmt.Errorf("failed to get balances: %w", err)
	}
	for i := range balances {
		balances[i].Token = normalizeNative(balances[i].Token)
		balances[i].ChainID = chainID
	}
	return balances, nil
}

// GetTokenData fetches token metadata by address. Results are cached.
func (c *EnsoClient) GetTokenData(ctx context.Context, chainID int64, address string) (*types.Token, error) {
	key := fmt.Sprintf("token:%d:%s", chainID, types.NormalizeAddress(address))
	if cached, found := c.cache.Get(key); found {
		token := cached.(types.Token)
		return &token, nil
	}

	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", chainID))
	q.Set("address", address)
	q.Set("includeMetadata", "true")

	var resp struct {
		Data []struct {
			Address  string   `json:"address"`
			ChainID  int64    `json:"chainId"`
			Name     string   `json:"name"`
			Symbol   string   `json:"symbol"`
			Decimals int32    `json:"decimals"`
			Project  string   `json:"protocolSlug"`
			LogosURI []string `json:"logosUri"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/tokens?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("failed to get token data: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("token %s not found on chain %d", address, chainID)
	}

	raw := resp.Data[0]
	token := types.Token{
		Address:  types.NormalizeAddress(raw.Address),
		ChainID:  chainID,
		Name:     raw.Name,
		Symbol:   raw.Symbol,
		Decimals: raw.Decimals,
		Project:  raw.Project,
	}
	if len(raw.LogosURI) > 0 {
		token.LogoURI = raw.LogosURI[0]
	}
	c.cache.Set(key, token, metadataCacheTTL)
	return &token, nil
}

// GetPriceData fetches the USD unit price for a token. Results are cached
// briefly so repeated impact calculations don't hammer the API.
func (c *EnsoClient) GetPriceData(ctx context.Context, chainID int64, address string) (*types.TokenPrice, error) {
	key := fmt.Sprintf("price:%d:%s", chainID, types.NormalizeAddress(address))
	if cached, found := c.cache.Get(key); found {
		price := cached.(types.TokenPrice)
		return &price, nil
	}

	var resp struct {
		Price decimal.Decimal `json:"price"`
	}
	path := fmt.Sprintf("/prices/%d/%s", chainID, address)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}

	price := types.TokenPrice{
		Address: types.NormalizeAddress(address),
		ChainID: chainID,
		Price:   resp.Price,
	}
	c.cache.Set(key, price, priceCacheTTL)
	return &price, nil
}

func (c *EnsoClient) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, fasthttp.MethodGet, path, nil, out)
}

func (c *EnsoClient) postJSON(ctx context.Context, path string, body []byte, out any) error {
	return c.doJSON(ctx, fasthttp.MethodPost, path, body, out)
}

func (c *EnsoClient) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	requestURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		status, respBody, err := c.do(ctx, method, requestURL, body)
		if err != nil {
			lastErr = err
			c.logger.Warn("Request failed, retrying",
				zap.String("url", requestURL), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if status >= 500 {
			lastErr = apiError(status, respBody)
			c.logger.Warn("Server error, retrying",
				zap.String("url", requestURL), zap.Int("status", status), zap.Int("attempt", attempt))
			continue
		}
		if status < 200 || status >= 300 {
			// Client errors are not retried.
			return apiError(status, respBody)
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", requestURL, err)
		}
		return nil
	}
	return lastErr
}

func (c *EnsoClient) do(ctx context.Context, method, requestURL string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			return 0, nil, fmt.Errorf("request to %s failed: %w", requestURL, err)
		}
	} else {
		if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
			return 0, nil, fmt.Errorf("request to %s failed: %w", requestURL, err)
		}
	}

	respBody := make([]byte, len(resp.Body()))
	copy(respBody, resp.Body())
	return resp.StatusCode(), respBody, nil
}

// apiError extracts the service's error message from the response body
// when one is present.
func apiError(status int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return fmt.Errorf("API error (status %d): %s", status, parsed.Message)
		}
		if parsed.Error != "" {
			return fmt.Errorf("API error (status %d): %s", status, parsed.Error)
		}
	}
	if len(body) > 0 {
		return fmt.Errorf("API error (status %d): %s", status, string(body))
	}
	return fmt.Errorf("API returned status code %d", status)
}

// normalizeNative maps the balance API's native-asset sentinels to the
// canonical native address.
func normalizeNative(address string) string {
	switch strings.ToLower(address) {
	case "", "0x0000000000000000000000000000000000000000", "native", "eth":
		return types.NativeAddress
	default:
		return types.NormalizeAddress(address)
	}
}
