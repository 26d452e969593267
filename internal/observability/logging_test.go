package observability

import (
	"context"
	"testing"
)

func TestContextAccumulatesFields(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithApplianceID(ctx, 42)
	ctx = WithAccountID(ctx, 7)
	ctx = WithTouchKind(ctx, "state")

	lc := GetContext(ctx)
	if lc.RequestID != "req-1" {
		t.Errorf("expected request id req-1, got %q", lc.RequestID)
	}
	if lc.ApplianceID != 42 {
		t.Errorf("expected appliance id 42, got %d", lc.ApplianceID)
	}
	if lc.AccountID != 7 {
		t.Errorf("expected account id 7, got %d", lc.AccountID)
	}
	if lc.TouchKind != "state" {
		t.Errorf("expected touch kind state, got %q", lc.TouchKind)
	}
}

func TestLaterValueWins(t *testing.T) {
	ctx := WithApplianceID(context.Background(), 1)
	ctx = WithApplianceID(ctx, 2)
	if lc := GetContext(ctx); lc.ApplianceID != 2 {
		t.Errorf("expected 2, got %d", lc.ApplianceID)
	}
}

func TestEmptyContext(t *testing.T) {
	lc := GetContext(context.Background())
	if lc != (LogContext{}) {
		t.Errorf("expected zero LogContext, got %+v", lc)
	}
}

func TestAttrsSkipZeroFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "only-req")
	attrs := getLogAttrs(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attr, got %d", len(attrs))
	}
	if attrs[0].Key != "request.id" {
		t.Errorf("expected request.id, got %s", attrs[0].Key)
	}
}
