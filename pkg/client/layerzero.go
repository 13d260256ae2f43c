package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefaultLayerZeroScanURL is the public bridge-status endpoint.
const DefaultLayerZeroScanURL = "https://scan.layerzero-api.com/v1"

// Cross-chain message statuses reported by the scan API.
const (
	LayerZeroPending    = "PENDING"
	LayerZeroInflight   = "INFLIGHT"
	LayerZeroConfirming = "CONFIRMING"
	LayerZeroDelivered  = "DELIVERED"
	LayerZeroSucceeded  = "SUCCEEDED"
	LayerZeroFailed     = "FAILED"
)

// BridgeMessage is the delivery state of one cross-chain message.
type BridgeMessage struct {
	Source struct {
		Status string `json:"status"`
		TxHash string `json:"txHash"`
	} `json:"source"`
	Destination struct {
		Status string `json:"status"`
		TxHash string `json:"txHash"`
	} `json:"destination"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
}

// LayerZeroClient polls the bridge-status service for cross-chain message
// delivery.
type LayerZeroClient struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLayerZeroClient creates a bridge-status client.
func NewLayerZeroClient(baseURL string, logger *zap.Logger) *LayerZeroClient {
	if baseURL == "" {
		baseURL = DefaultLayerZeroScanURL
	}
	return &LayerZeroClient{
		http:    &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 10 * time.Second,
		logger:  logger.Named("LayerZeroClient"),
	}
}

// GetMessageByTx returns the bridge message created by the given source
// transaction, or nil when the scan service has not indexed it yet.
func (c *LayerZeroClient) GetMessageByTx(ctx context.Context, txHash string) (*BridgeMessage, error) {
	requestURL := fmt.Sprintf("%s/messages/tx/%s", c.baseURL, txHash)

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("bridge status request failed: %w", err)
		}
	} else {
		if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
			return nil, fmt.Errorf("bridge status request failed: %w", err)
		}
	}

	if resp.StatusCode() == fasthttp.StatusNotFound {
		// Not indexed yet. Absence of data does not imply failure.
		return nil, nil
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("bridge status API returned status %d", resp.StatusCode())
	}

	var parsed struct {
		Data []BridgeMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode bridge status response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, nil
	}
	return &parsed.Data[0], nil
}
