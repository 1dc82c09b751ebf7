package runtime

import (
	"context"
	"testing"

	"github.com/kingpin-stream/economy-core/pkg/config"
)

func TestDetermineListenAddrUsesDefaults(t *testing.T) {
	cfg := config.New()
	cfg.Server.Host = ""
	cfg.Server.Port = 0

	addr := determineListenAddr(cfg)
	if addr != "0.0.0.0:8080" {
		t.Fatalf("expected default addr, got %s", addr)
	}

	cfg.Server.Host = "127.0.0.1 "
	cfg.Server.Port = 9090
	if got := determineListenAddr(cfg); got != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %s", got)
	}
}

func TestBuildStoresFallsBackToNilWhenUnconfigured(t *testing.T) {
	cfg := config.New()
	cfg.Database.Driver = ""
	cfg.Database.DSN = ""
	cfg.Database.Host = ""

	stores, db, err := buildStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db != nil {
		t.Fatalf("expected no db connection to be opened")
	}
	if stores.Backing != nil {
		t.Fatalf("expected empty stores when database is unconfigured")
	}
}

func TestBuildStoresRejectsUnsupportedDriver(t *testing.T) {
	cfg := config.New()
	cfg.Database.Driver = "mysql"
	cfg.Database.DSN = "user:pass@/dbname"

	if _, _, err := buildStores(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
