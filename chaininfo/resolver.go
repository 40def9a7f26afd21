// Package chaininfo resolves the current Ethereum block height, used
// as the default proposal cutoff when a query does not supply one.
package chaininfo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// defaultChainInfoURL is a public chain-info document carrying the
// current height.
const defaultChainInfoURL = "https://api.blockcypher.com/v1/eth/main"

// maxResponseSize bounds the chain-info response body.
const maxResponseSize = 1 << 20 // 1 MB

// HTTPResolver reads the height from a chain-info JSON document. One
// outbound call per Resolve; no caching.
type HTTPResolver struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// HTTPResolverOption configures an HTTPResolver.
type HTTPResolverOption func(*HTTPResolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.logger = logger
	}
}

// NewHTTPResolver creates a resolver against the given chain-info URL.
// An empty url uses the public endpoint.
func NewHTTPResolver(url string, opts ...HTTPResolverOption) *HTTPResolver {
	if url == "" {
		url = defaultChainInfoURL
	}

	r := &HTTPResolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// chainInfo is the subset of the chain-info document we read. Height
// arrives as a JSON number but is parsed through json.Number so a
// string-encoded height also works.
type chainInfo struct {
	Height json.Number `json:"height"`
}

// Resolve fetches the current block height.
func (r *HTTPResolver) Resolve(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, fmt.Errorf("create chain info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch chain info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, fmt.Errorf("read chain info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chain info service returned status %d", resp.StatusCode)
	}

	var info chainInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, fmt.Errorf("decode chain info response: %w", err)
	}

	height, err := strconv.ParseUint(info.Height.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chain height %q: %w", info.Height.String(), err)
	}

	r.logger.Debug("Resolved chain height", "url", r.url, "height", height)
	return height, nil
}

// RPCResolver reads the height from an Ethereum JSON-RPC endpoint via
// eth_blockNumber.
type RPCResolver struct {
	eth *ethclient.Client
}

// NewRPCResolver dials the given JSON-RPC endpoint.
func NewRPCResolver(ctx context.Context, url string) (*RPCResolver, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	return &RPCResolver{eth: eth}, nil
}

// Resolve fetches the current block number.
func (r *RPCResolver) Resolve(ctx context.Context) (uint64, error) {
	height, err := r.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch block number: %w", err)
	}
	return height, nil
}

// Close releases the underlying RPC connection.
func (r *RPCResolver) Close() {
	r.eth.Close()
}
