package otel

import (
	"context"
	"testing"
)

func TestInitDisabledReturnsTracer(t *testing.T) {
	tel, err := Init(context.Background(), Config{ServiceName: "claimsd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if tel.Tracer == nil {
		t.Fatalf("expected tracer")
	}
	_, span := tel.Tracer.Start(context.Background(), "noop")
	span.End()
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitRequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without service name")
	}
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer x ,bad, =skip,team=claims")
	if len(got) != 2 || got["authorization"] != "Bearer x" || got["team"] != "claims" {
		t.Fatalf("unexpected headers %v", got)
	}
}
