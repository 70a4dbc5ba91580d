package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"checkin/internal/session"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8081" || cfg.StoreBackend != BackendSQLite || cfg.QueueBackend != QueueMemory {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout = %s", cfg.ShutdownTimeout)
	}
	if pinned, _ := cfg.PinnedDate(); !pinned.IsZero() {
		t.Fatalf("PinnedDate = %v, want zero", pinned)
	}
	if cfg.Production() {
		t.Fatal("dev config reported as production")
	}
	if cfg.UsesRedis() {
		t.Fatal("default config should not need redis")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", " Redis ")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("EVENT_DATE", "2025-09-20")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("QUEUE_BACKEND", "Redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != BackendRedis || cfg.QueueBackend != QueueRedis || cfg.RateLimitPerMin != 30 || !cfg.Production() {
		t.Fatalf("cfg = %+v", cfg)
	}
	loc, _ := cfg.Location()
	if loc != time.UTC {
		t.Fatalf("Location = %v", loc)
	}
	pinned, _ := cfg.PinnedDate()
	if pinned.Format("2006-01-02") != "2025-09-20" {
		t.Fatalf("PinnedDate = %v", pinned)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"backend":  {"STORE_BACKEND", "spreadsheet"},
		"queue":    {"QUEUE_BACKEND", "kafka"},
		"timezone": {"TIMEZONE", "Mars/Olympus"},
		"date":     {"EVENT_DATE", "20/09/2025"},
		"int":      {"RATE_LIMIT_PER_MIN", "lots"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}

func TestLoadCatalogDefault(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := len(c.Sessions()); got != 3 {
		t.Fatalf("sessions = %d, want 3", got)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.yaml")
	data := `sessions:
  - value: S1
    label: Session 1
    start: "08:30"
    end: "09:15"
  - value: Night
    start: "23:00"
    end: "00:00"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	got := c.Sessions()
	if len(got) != 2 || got[0].Label != "Session 1" || got[1].Label != "Night" || !got[1].Overnight() {
		t.Fatalf("sessions = %+v", got)
	}
}

func TestLoadCatalogInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.yaml")
	if err := os.WriteFile(path, []byte("sessions:\n  - value: S1\n    start: \"8:30\"\n    end: \"09:15\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCatalog(path); !errors.Is(err, session.ErrInvalidCatalog) {
		t.Fatalf("err = %v, want ErrInvalidCatalog", err)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolverHonoursEventDate(t *testing.T) {
	cfg := App{Timezone: "UTC", EventDate: "2025-09-20"}
	r, err := cfg.Resolver()
	if err != nil {
		t.Fatalf("Resolver: %v", err)
	}
	onDay := time.Date(2025, 9, 20, 10, 15, 0, 0, time.UTC)
	if s, ok := r.Active(onDay); !ok || s.Value != "AM Break" {
		t.Fatalf("Active = %+v, %v", s, ok)
	}
	if _, ok := r.Active(onDay.AddDate(0, 0, 1)); ok {
		t.Fatal("resolver active outside event date")
	}
}
