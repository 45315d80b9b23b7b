package yield

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"stokvel/crypto"
)

// Router forwards yield claim requests to the external reward subsystem. The
// ledger validates eligibility and passes the response through unchanged.
type Router interface {
	Claim(ctx context.Context, poolID uint64, member [20]byte) (json.RawMessage, error)
}

// NoopRouter acknowledges claims locally. It is used when no reward service
// is configured so that eligibility checks still run end to end.
type NoopRouter struct{}

// Claim implements the Router interface.
func (NoopRouter) Claim(_ context.Context, poolID uint64, member [20]byte) (json.RawMessage, error) {
	ack := struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		PoolID    uint64 `json:"poolId"`
		Member    string `json:"member"`
	}{
		Status:    "accepted",
		Reference: uuid.NewString(),
		PoolID:    poolID,
		Member:    crypto.MustNewAddress(member).String(),
	}
	return json.Marshal(ack)
}

const defaultClaimTimeout = 10 * time.Second

// HTTPRouter posts claim events to a reward service endpoint and returns the
// raw response body.
type HTTPRouter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRouter builds a router targeting the given endpoint. A zero timeout
// falls back to the default.
func NewHTTPRouter(endpoint string, timeout time.Duration) *HTTPRouter {
	if timeout <= 0 {
		timeout = defaultClaimTimeout
	}
	return &HTTPRouter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type claimRequest struct {
	Reference string `json:"reference"`
	PoolID    uint64 `json:"poolId"`
	Member    string `json:"member"`
	ClaimedAt int64  `json:"claimedAt"`
}

// Claim implements the Router interface.
func (r *HTTPRouter) Claim(ctx context.Context, poolID uint64, member [20]byte) (json.RawMessage, error) {
	if r == nil || r.endpoint == "" {
		return nil, fmt.Errorf("yield: router endpoint not configured")
	}
	payload := claimRequest{
		Reference: uuid.NewString(),
		PoolID:    poolID,
		Member:    crypto.MustNewAddress(member).String(),
		ClaimedAt: time.Now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yield: claim forward failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("yield: reward service returned status %d", resp.StatusCode)
	}
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("yield: reward service returned invalid JSON")
	}
	return json.RawMessage(raw), nil
}
