package signer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testPrivateKey = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1"

func TestSignPhantomAgentIsDeterministicAndWellFormed(t *testing.T) {
	c, err := NewClient("https://example.invalid", testPrivateKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	action := []byte(`{"type":"order","asset":0}`)
	sig1, err := c.signPhantomAgent(action, true)
	if err != nil {
		t.Fatalf("signPhantomAgent: %v", err)
	}
	sig2, err := c.signPhantomAgent(action, true)
	if err != nil {
		t.Fatalf("signPhantomAgent: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("expected deterministic signature for identical input, got %+v vs %+v", sig1, sig2)
	}

	if !strings.HasPrefix(sig1.R, "0x") || len(sig1.R) != 66 {
		t.Fatalf("R has unexpected shape: %q", sig1.R)
	}
	if !strings.HasPrefix(sig1.S, "0x") || len(sig1.S) != 66 {
		t.Fatalf("S has unexpected shape: %q", sig1.S)
	}
	if sig1.V != 27 && sig1.V != 28 {
		t.Fatalf("V must be 27 or 28, got %d", sig1.V)
	}

	sigMainnet, err := c.signPhantomAgent(action, false)
	if err != nil {
		t.Fatalf("signPhantomAgent: %v", err)
	}
	if sigMainnet == sig1 {
		t.Fatal("expected is_mainnet to change the signed hash")
	}
}

func TestLimiterForSharesOneLimiterPerBaseURL(t *testing.T) {
	a := limiterFor("https://api.hyperliquid.xyz")
	b := limiterFor("https://api.hyperliquid.xyz")
	c := limiterFor("https://api.hyperliquid-testnet.xyz")

	if a != b {
		t.Fatal("expected the same limiter instance for the same base URL")
	}
	if a == c {
		t.Fatal("expected distinct limiters for distinct base URLs")
	}
}

func TestResolveAssetIndicesPopulatesMapFromMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"universe": []map[string]string{
				{"name": "BTC"},
				{"name": "ETH"},
				{"name": "SOL"},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testPrivateKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.ResolveAssetIndices(context.Background()); err != nil {
		t.Fatalf("ResolveAssetIndices: %v", err)
	}

	cases := map[string]int{"BTC": 0, "ETH": 1, "SOL": 2}
	for symbol, want := range cases {
		got, ok := c.AssetIndex(symbol)
		if !ok {
			t.Fatalf("expected asset index for %s", symbol)
		}
		if got != want {
			t.Fatalf("asset index for %s: got %d, want %d", symbol, got, want)
		}
	}

	if _, ok := c.AssetIndex("DOGE"); ok {
		t.Fatal("did not expect an asset index for an unresolved symbol")
	}
}

func TestPostSignedReturnsRestingOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body signedRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body.Signature.V != 27 && body.Signature.V != 28 {
			t.Fatalf("unexpected signature V in request body: %d", body.Signature.V)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"response": map[string]any{
				"data": map[string]any{
					"statuses": []map[string]any{
						{"resting": map[string]any{"oid": 42}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testPrivateKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	oid, err := c.PostSigned(context.Background(), "/exchange", map[string]any{"type": "order"}, true)
	if err != nil {
		t.Fatalf("PostSigned: %v", err)
	}
	if oid != 42 {
		t.Fatalf("expected resting oid 42, got %d", oid)
	}
}

func TestPostSignedSurfacesOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"response": map[string]any{
				"data": map[string]any{
					"statuses": []map[string]any{
						{"error": "insufficient margin"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, testPrivateKey)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.PostSigned(context.Background(), "/exchange", map[string]any{"type": "order"}, true); err == nil {
		t.Fatal("expected an error for a rejected order")
	}
}
