package chainClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IChainClient defines the chain API surface the pipeline depends on.
// Implementations must be safe for concurrent use: the orchestrator issues
// independent fetches for distinct accounts concurrently.
type IChainClient interface {
	// GetInfo fetches current chain state (chain id, head and LIB numbers)
	GetInfo(ctx context.Context) (*ChainInfo, error)
	// GetBlock fetches a finalized, canonical block by number
	GetBlock(ctx context.Context, blockNum uint32) (*Block, error)
	// GetBlockHeaderState fetches reversible block state; may fail when the
	// endpoint is unsupported or the block has been pruned
	GetBlockHeaderState(ctx context.Context, blockNum uint32) (*BlockHeaderState, error)
	// GetRawAbi fetches an account's raw ABI bytes
	GetRawAbi(ctx context.Context, accountName string) (*RawAbi, error)
	// GetRequiredKeys resolves the signing keys a transaction needs from the
	// set of available keys
	GetRequiredKeys(ctx context.Context, args GetRequiredKeysArgs) ([]string, error)
	// PushTransaction submits a signed transaction for inclusion
	PushTransaction(ctx context.Context, args *PushTransactionArgs) (*PushTransactionResponse, error)
}

// ApiError is a structured error response from the node. The What field
// carries the node's human-readable failure summary.
type ApiError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Err        struct {
		Code    int    `json:"code"`
		Name    string `json:"name"`
		What    string `json:"what"`
		Details []struct {
			Message string `json:"message"`
			File    string `json:"file"`
		} `json:"details"`
	} `json:"error"`
}

func (e *ApiError) Error() string {
	if e.Err.What != "" {
		return fmt.Sprintf("chain api error (http %d): %s", e.StatusCode, e.Err.What)
	}
	if e.Message != "" {
		return fmt.Sprintf("chain api error (http %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chain api error (http %d)", e.StatusCode)
}

// ChainClientConfig holds the configuration for connecting to a chain node.
type ChainClientConfig struct {
	// BaseURL is the node's HTTP endpoint, e.g. "https://api.example.net"
	BaseURL string
	// Timeout bounds each request; zero means 30 seconds
	Timeout time.Duration
}

// ChainClient implements IChainClient over the node's HTTP JSON API.
// Cancellation and timeout enforcement live here, at the transport boundary;
// the pipeline above has no cancellation primitive of its own.
type ChainClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewChainClient creates a ChainClient for the configured node.
//
// Parameters:
//   - cfg: The connection configuration
//   - logger: The zap logger for request diagnostics
//
// Returns:
//   - *ChainClient: A new chain client instance
func NewChainClient(cfg *ChainClientConfig, logger *zap.Logger) *ChainClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ChainClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *ChainClient) post(ctx context.Context, path string, body any, out any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request for %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	c.logger.Debug("chain api call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		apiErr := &ApiError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}
	return nil
}

// GetInfo fetches current chain state.
func (c *ChainClient) GetInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.post(ctx, "/v1/chain/get_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetBlock fetches a block by number.
func (c *ChainClient) GetBlock(ctx context.Context, blockNum uint32) (*Block, error) {
	var block Block
	body := map[string]any{"block_num_or_id": blockNum}
	if err := c.post(ctx, "/v1/chain/get_block", body, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockHeaderState fetches reversible block state by number.
func (c *ChainClient) GetBlockHeaderState(ctx context.Context, blockNum uint32) (*BlockHeaderState, error) {
	var state BlockHeaderState
	body := map[string]any{"block_num_or_id": blockNum}
	if err := c.post(ctx, "/v1/chain/get_block_header_state", body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetRawAbi fetches an account's raw ABI bytes.
func (c *ChainClient) GetRawAbi(ctx context.Context, accountName string) (*RawAbi, error) {
	var raw RawAbi
	body := map[string]any{"account_name": accountName}
	if err := c.post(ctx, "/v1/chain/get_raw_abi", body, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// GetRequiredKeys resolves the keys required to sign a transaction.
func (c *ChainClient) GetRequiredKeys(ctx context.Context, args GetRequiredKeysArgs) ([]string, error) {
	var out struct {
		RequiredKeys []string `json:"required_keys"`
	}
	if err := c.post(ctx, "/v1/chain/get_required_keys", args, &out); err != nil {
		return nil, err
	}
	return out.RequiredKeys, nil
}

// PushTransaction submits a signed transaction.
func (c *ChainClient) PushTransaction(ctx context.Context, args *PushTransactionArgs) (*PushTransactionResponse, error) {
	var out PushTransactionResponse
	if err := c.post(ctx, "/v1/chain/push_transaction", args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
