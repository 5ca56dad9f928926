package taflbuilder

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/park285/tafl-htp-bot/internal/config"
)

func load(t *testing.T, extra ...string) *config.AppConfig {
	t.Helper()
	args := append([]string{"--username", "bot", "--role", "attacker"}, extra...)
	cfg, err := config.Load(args)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

func TestNewMinimal(t *testing.T) {
	d, err := New(context.Background(), load(t, "--preset", "blitz"), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if d.Runner == nil {
		t.Fatalf("runner not wired")
	}
	if d.Status != nil {
		t.Fatalf("status server without an address")
	}
	if d.Preset.Name != "blitz" {
		t.Fatalf("preset = %q", d.Preset.Name)
	}
}

func TestNewWithStatusAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := load(t, "--status-addr", "127.0.0.1:0", "--redis-url", "redis://"+mr.Addr()+"/0")
	d, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Status == nil {
		t.Fatalf("status server not wired")
	}
	if len(d.closers) != 1 {
		t.Fatalf("closers = %d", len(d.closers))
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.closers != nil {
		t.Fatalf("closers kept after Close")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := New(context.Background(), load(t, "--preset", "nope"), nil); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	if _, err := New(context.Background(), load(t, "--primary-engine", "external", "--engine-path", "/nonexistent/engine"), nil); err == nil {
		t.Fatalf("expected missing engine error")
	}
	if _, err := New(context.Background(), load(t, "--redis-url", "http://localhost"), nil); err == nil {
		t.Fatalf("expected redis url error")
	}
}
