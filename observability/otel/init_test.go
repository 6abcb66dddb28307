package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =skip,x=1")
	if len(got) != 2 || got["api-key"] != "abc" || got["x"] != "1" {
		t.Fatalf("unexpected headers: %v", got)
	}
}

func TestInitWithoutExporters(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected service name error")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "bankd"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
