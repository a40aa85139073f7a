// Package signer implements Hyperliquid's authenticated REST client: the
// rate-limited HTTP transport, asset-index resolution, and phantom-agent
// EIP-712 signing and submission of exchange actions (SPEC_FULL §4.9).
// Grounded on 0xtitan6-polymarket-mm's internal/exchange/auth.go for the
// EIP-712 typed-data construction and secp256k1 signing, retargeted from
// Polymarket's ClobAuth/HMAC dual-layer scheme to Hyperliquid's single
// phantom-agent signature.
package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/time/rate"
)

// hyperliquidChainID is fixed by Hyperliquid's signing scheme and must never
// be swapped for any other network's EIP-155 chain id.
const hyperliquidChainID = 1337

// requestsPerSecond is the global per-exchange-URL REST quota.
const requestsPerSecond = 20

// Signature is the r/s/v triplet attached to a signed exchange action.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// signedRequest is the body shape POSTed to /exchange.
type signedRequest struct {
	Action    any       `json:"action"`
	Nonce     int64     `json:"nonce"`
	Signature Signature `json:"signature"`
}

// exchangeResponse is the common envelope returned by /exchange.
type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Data struct {
			Statuses []struct {
				Resting *struct {
					OID int64 `json:"oid"`
				} `json:"resting"`
				Error string `json:"error"`
			} `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// limiterRegistry shares one rate.Limiter per exchange base URL, per
// SPEC_FULL §5's "one instance per exchange URL, shared across clients"
// requirement.
var limiterRegistry = struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}{limiters: make(map[string]*rate.Limiter)}

func limiterFor(baseURL string) *rate.Limiter {
	limiterRegistry.mu.Lock()
	defer limiterRegistry.mu.Unlock()
	if l, ok := limiterRegistry.limiters[baseURL]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	limiterRegistry.limiters[baseURL] = l
	return l
}

// Client is an authenticated Hyperliquid REST client: unsigned /info reads
// and signed /exchange writes, both sharing the URL's rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	privateKey *ecdsa.PrivateKey
	limiter    *rate.Limiter
	nonce      int64 // per-wallet monotonic counter, atomic

	assetIndexMu sync.RWMutex
	assetIndex   map[string]int
}

// NewClient constructs a client for apiBaseURL authenticating with the given
// hex-encoded secp256k1 private key (32 bytes, with or without a 0x prefix).
func NewClient(apiBaseURL, privateKeyHex string) (*Client, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("signer: parse private key: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    apiBaseURL,
		privateKey: privateKey,
		limiter:    limiterFor(apiBaseURL),
		nonce:      time.Now().UnixMilli(),
		assetIndex: make(map[string]int),
	}, nil
}

// ResolveAssetIndices fetches exchange metadata and populates the
// symbol -> asset-index map used to build order actions.
func (c *Client) ResolveAssetIndices(ctx context.Context) error {
	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := c.postInfo(ctx, map[string]any{"type": "meta"}, &meta); err != nil {
		return fmt.Errorf("signer: resolve asset indices: %w", err)
	}

	c.assetIndexMu.Lock()
	defer c.assetIndexMu.Unlock()
	for i, asset := range meta.Universe {
		c.assetIndex[asset.Name] = i
	}
	return nil
}

// AssetIndex returns the resolved asset index for symbol.
func (c *Client) AssetIndex(symbol string) (int, bool) {
	c.assetIndexMu.RLock()
	defer c.assetIndexMu.RUnlock()
	idx, ok := c.assetIndex[symbol]
	return idx, ok
}

// postInfo performs an unsigned POST to /info.
func (c *Client) postInfo(ctx context.Context, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// nextNonce returns the next monotonic nonce for this wallet.
func (c *Client) nextNonce() int64 {
	return atomic.AddInt64(&c.nonce, 1)
}

// PostSigned signs action with the phantom-agent scheme and submits it to
// path (always "/exchange" in practice), returning the resting order id.
func (c *Client) PostSigned(ctx context.Context, path string, action any, isMainnet bool) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	serialized, err := json.Marshal(action)
	if err != nil {
		return 0, fmt.Errorf("signer: marshal action: %w", err)
	}

	nonce := c.nextNonce()
	sig, err := c.signPhantomAgent(serialized, isMainnet)
	if err != nil {
		return 0, fmt.Errorf("signer: sign action: %w", err)
	}

	reqBody := signedRequest{Action: action, Nonce: nonce, Signature: sig}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var parsed exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("signer: decode exchange response: %w", err)
	}
	if parsed.Status != "ok" {
		return 0, fmt.Errorf("signer: exchange rejected action: status=%q", parsed.Status)
	}
	if len(parsed.Response.Data.Statuses) == 0 {
		return 0, fmt.Errorf("signer: exchange returned no order statuses")
	}
	status := parsed.Response.Data.Statuses[0]
	if status.Error != "" {
		return 0, fmt.Errorf("signer: order rejected: %s", status.Error)
	}
	if status.Resting == nil {
		return 0, fmt.Errorf("signer: order not resting and no error reported")
	}
	return status.Resting.OID, nil
}

// signPhantomAgent implements SPEC_FULL §4.9's phantom-agent EIP-712
// signature: keccak256(serializedAction) becomes the phantom_agent field of
// a typed struct signed over Hyperliquid's fixed Exchange domain.
func (c *Client) signPhantomAgent(serializedAction []byte, isMainnet bool) (Signature, error) {
	phantomAgent := crypto.Keccak256(serializedAction)

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "phantom_agent", Type: "bytes32"},
				{Name: "is_mainnet", Type: "bool"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*ethmath.HexOrDecimal256)(big.NewInt(hyperliquidChainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"phantom_agent": phantomAgent,
			"is_mainnet":    isMainnet,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return Signature{}, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return Signature{}, fmt.Errorf("sign typed data: %w", err)
	}

	v := int(sig[64])
	if v < 27 {
		v += 27
	}

	return Signature{
		R: "0x" + fmt.Sprintf("%064x", new(big.Int).SetBytes(sig[:32])),
		S: "0x" + fmt.Sprintf("%064x", new(big.Int).SetBytes(sig[32:64])),
		V: v,
	}, nil
}
