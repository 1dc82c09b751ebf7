package app

import (
	"context"
	"testing"

	"github.com/kingpin-stream/economy-core/pkg/config"
)

func TestNewWiresEveryDomainServiceAgainstInMemoryStore(t *testing.T) {
	cfg := config.New()
	application, err := New(Stores{}, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if application.Store == nil {
		t.Fatalf("expected default in-memory store to be wired")
	}
	if application.Cooldown == nil || application.Buff == nil || application.Currency == nil ||
		application.Inventory == nil || application.Economy == nil || application.Gambling == nil ||
		application.Shop == nil || application.Consumable == nil || application.Mission == nil ||
		application.Business == nil || application.Streaming == nil || application.Merge == nil ||
		application.Notification == nil {
		t.Fatalf("expected every domain service to be constructed")
	}
	if application.Ingress == nil || application.HTTPAPI == nil || application.Scheduler == nil {
		t.Fatalf("expected ingress/httpapi/scheduler to be constructed")
	}
}

func TestStartStopDrivesRegisteredServices(t *testing.T) {
	cfg := config.New()
	cfg.Server.Port = 0 // let the OS assign a free port for httpapi.Service
	application, err := New(Stores{}, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestDescriptorsReflectRegisteredServices(t *testing.T) {
	cfg := config.New()
	application, err := New(Stores{}, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	descriptors := application.Descriptors()
	if len(descriptors) == 0 {
		t.Fatalf("expected at least one descriptor from the scheduler service")
	}

	names := map[string]bool{}
	for _, d := range descriptors {
		names[d.Name] = true
	}
	if !names["economy-scheduler"] {
		t.Fatalf("expected economy-scheduler descriptor, got %v", descriptors)
	}
}
