// Copyright 2025 Certen Protocol

package judge

import (
	"context"
	"testing"

	"github.com/certen/agentcourt/pkg/protocol"
)

func TestTelegramNotifier_PublishIsNoopWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier("", "")
	if err := n.Publish(context.Background(), protocol.VerdictPackage{VerdictID: "v-1"}); err != nil {
		t.Fatalf("expected no-op publish to succeed, got %v", err)
	}
}

func TestMultiSink_PublishFansOutAndSkipsNil(t *testing.T) {
	var calls []string

	one := recordingSink{name: "one", calls: &calls}
	two := recordingSink{name: "two", calls: &calls}

	multi := NewMultiSink(one, nil, two)
	verdict := protocol.VerdictPackage{VerdictID: "v-2", DisputeID: "d-2"}
	if err := multi.Publish(context.Background(), verdict); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected both sinks called, got %v", calls)
	}
}

type recordingSink struct {
	name  string
	calls *[]string
}

func (s recordingSink) Publish(ctx context.Context, verdict protocol.VerdictPackage) error {
	*s.calls = append(*s.calls, s.name)
	return nil
}
