package mq

import (
	"context"
	"testing"

	"github.com/rolegate/rolegate/config"
)

func TestOpen_DisabledReturnsNil(t *testing.T) {
	backend, err := Open(context.Background(), config.EventsConfig{Backend: config.EventsBackendNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backend != nil {
		t.Fatalf("expected no backend, got %T", backend)
	}
}

func TestOpen_RequiresBrokerSettings(t *testing.T) {
	if _, err := Open(context.Background(), config.EventsConfig{Backend: config.EventsBackendRabbitMQ}); err == nil {
		t.Fatalf("expected error for missing rabbitmq url")
	}
	if _, err := Open(context.Background(), config.EventsConfig{Backend: config.EventsBackendPubSub}); err == nil {
		t.Fatalf("expected error for missing pubsub project")
	}
	if _, err := Open(context.Background(), config.EventsConfig{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestTableToAttributes(t *testing.T) {
	attrs := tableToAttributes(map[string]any{"type": "user.registered", "raw": []byte("x"), "n": 3})
	if attrs["type"] != "user.registered" || attrs["raw"] != "x" || attrs["n"] != "3" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if tableToAttributes(nil) != nil {
		t.Fatalf("expected nil for empty headers")
	}
}
