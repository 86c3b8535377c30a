package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"marketwatch/internal/config"
)

// exerciseKV runs the same contract checks against any backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	key := Key("test-" + t.Name())

	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := kv.Put(ctx, key, []byte(`{"RELI":"Reliance Industries"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := kv.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"RELI":"Reliance Industries"}` {
		t.Errorf("Get = %s, want stored value", got)
	}

	if err := kv.Put(ctx, key, []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _ = kv.Get(ctx, key)
	if string(got) != "v2" {
		t.Errorf("Get after overwrite = %s, want v2", got)
	}

	if err := kv.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := kv.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := kv.Delete(ctx, key); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemoryKV())
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "mw.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestSQLiteKVPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mw.db")
	ctx := context.Background()

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	if err := kv.Put(ctx, KeyTheme, []byte("dark")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	kv.Close()

	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	got, err := kv.Get(ctx, KeyTheme)
	if err != nil || string(got) != "dark" {
		t.Errorf("Get after reopen = %q, %v; want dark", got, err)
	}
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	exerciseKV(t, kv)
}

func TestFileKVReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	kv, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	if err := kv.Put(ctx, KeyToken, []byte("tok")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	kv2, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := kv2.Get(ctx, KeyToken)
	if err != nil || string(got) != "tok" {
		t.Errorf("Get after reload = %q, %v; want tok", got, err)
	}
}

func TestFileKVCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileKV(path); err == nil {
		t.Fatal("NewFileKV should fail on a corrupt file")
	}
}

func TestRedisKV(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	kv, err := NewRedisKV(context.Background(), config.Redis{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisKV: %v", err)
	}
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"sqlite", "file", "memory"} {
		kv, err := Open(context.Background(), config.Storage{
			Backend:    backend,
			SQLitePath: filepath.Join(dir, "open.db"),
			DataDir:    dir,
		})
		if err != nil {
			t.Fatalf("Open(%s): %v", backend, err)
		}
		kv.Close()
	}
	if _, err := Open(context.Background(), config.Storage{Backend: "etcd"}); err == nil {
		t.Error("Open should reject an unknown backend")
	}
}
