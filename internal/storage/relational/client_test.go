package relational

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chatzia/pkg/logger"
)

func TestClientReconnects(t *testing.T) {
	ctx := context.Background()
	client := New(Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "nested", "app.db")}, logger.Nop())

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if err := client.MigrateAll(ctx); err != nil {
		t.Fatalf("MigrateAll after reconnect: %v", err)
	}
	client.Disconnect()
}

func TestClientRejectsUnknownDriver(t *testing.T) {
	client := New(Config{Driver: "oracle"}, logger.Nop())
	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
