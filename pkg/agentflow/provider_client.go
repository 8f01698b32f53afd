// Copyright 2025 Certen Protocol
//
// ProviderClient models the x402-paid provider API call. The real
// payment middleware and provider API are out of scope; this stub
// implements the same interface with a synthetic paid response so the
// receipt-emission sequence can be exercised end to end. Grounded on
// original_source/apps/consumer_agent/src/consumer_agent/client_x402.py's
// response shape.

package agentflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderResponse is the result of one paid provider API call.
type ProviderResponse struct {
	StatusCode       int
	Payload          map[string]interface{}
	EvidenceHash     string
	PaymentReference string
	LatencyMs        int64
}

// ProviderClient performs a paid call against the provider API.
type ProviderClient interface {
	Get(ctx context.Context, path string) (ProviderResponse, error)
}

// StubProviderClient returns a synthetic paid response without making a
// network call, standing in for the unavailable x402 payment stack.
// Paths containing "bad=true" simulate the slow, malformed response the
// dispute flow exercises.
type StubProviderClient struct {
	payerAddress string
}

// NewStubProviderClient builds a StubProviderClient. payerAddress is stored
// but not read by Get.
func NewStubProviderClient(payerAddress string) *StubProviderClient {
	return &StubProviderClient{payerAddress: payerAddress}
}

func (c *StubProviderClient) Get(ctx context.Context, path string) (ProviderResponse, error) {
	bad := strings.Contains(path, "bad=true")

	latency := 120 * time.Millisecond
	if bad {
		latency = 3500 * time.Millisecond
	}
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ProviderResponse{}, ctx.Err()
	}

	status := 200
	payload := map[string]interface{}{"path": path, "ok": true}
	if bad {
		status = 200
		payload = map[string]interface{}{"path": path, "ok": false, "degraded": true}
	}

	return ProviderResponse{
		StatusCode:       status,
		Payload:          payload,
		EvidenceHash:     fmt.Sprintf("0x%x", uuid.New()),
		PaymentReference: "x402-" + uuid.NewString(),
		LatencyMs:        latency.Milliseconds(),
	}, nil
}
