package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "checkin.db")
	db, err := NewSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var nilDB *DB
	if err := nilDB.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestRedisHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis(mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if !r.Healthy(context.Background()) {
		t.Fatal("expected healthy redis")
	}
	mr.Close()
	if r.Healthy(context.Background()) {
		t.Fatal("expected unhealthy redis after shutdown")
	}
	var nilRedis *Redis
	if nilRedis.Healthy(context.Background()) {
		t.Fatal("nil redis reported healthy")
	}
}

func TestNewRedisAcceptsURL(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := NewRedis("redis://" + mr.Addr() + "/3")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	if db := r.Client.Options().DB; db != 3 {
		t.Fatalf("DB = %d, want 3", db)
	}
	if r.Client.Options().ReadTimeout != time.Second {
		t.Fatalf("ReadTimeout = %s", r.Client.Options().ReadTimeout)
	}
	if !r.Healthy(context.Background()) {
		t.Fatal("expected healthy redis")
	}

	if _, err := NewRedis("redis://" + mr.Addr() + "/notadb"); err == nil {
		t.Fatal("expected error for bad database number")
	}
}
