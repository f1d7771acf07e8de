package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine(t *testing.T) *BadgerEngine {
	t.Helper()

	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = "1h"
	cfg.Badger.SyncWrites = false

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("test-key"), []byte("test-value")); err != nil {
			t.Fatal(err)
		}
		got, err := engine.Get(ctx, []byte("test-key"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "test-value" {
			t.Errorf("Get() = %s, want test-value", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("non-existent"))
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := []byte("delete-key")
		if err := engine.Set(ctx, key, []byte("v")); err != nil {
			t.Fatal(err)
		}
		if err := engine.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, key); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrKeyNotFound", err)
		}
	})
}

func TestBadgerEngine_Scan(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for k, v := range map[string]string{
		"acct:3": "c",
		"acct:1": "a",
		"acct:2": "b",
		"auth:x": "data",
	} {
		if err := engine.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("Scan with prefix in key order", func(t *testing.T) {
		var got string
		err := engine.Scan(ctx, []byte("acct:"), func(key, value []byte) bool {
			got += string(value)
			return true
		})
		if err != nil {
			t.Fatal(err)
		}
		if got != "abc" {
			t.Errorf("Scan() values = %q, want %q", got, "abc")
		}
	})

	t.Run("Scan with early stop", func(t *testing.T) {
		count := 0
		err := engine.Scan(ctx, []byte("acct:"), func(key, value []byte) bool {
			count++
			return count < 2
		})
		if err != nil {
			t.Fatal(err)
		}
		if count != 2 {
			t.Errorf("iterations = %d, want 2", count)
		}
	})
}

func TestBadgerEngine_WriteBatch(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	if err := engine.Set(ctx, []byte("gone"), []byte("x")); err != nil {
		t.Fatal(err)
	}

	var batch Batch
	batch.Set([]byte("a"), []byte("1"))
	batch.Set([]byte("b"), []byte("2"))
	batch.Delete([]byte("gone"))
	if batch.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", batch.Len())
	}

	if err := engine.WriteBatch(ctx, &batch); err != nil {
		t.Fatal(err)
	}

	for key, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := engine.Get(ctx, []byte(key))
		if err != nil {
			t.Fatalf("Get(%s) error = %v", key, err)
		}
		if string(got) != want {
			t.Errorf("Get(%s) = %s, want %s", key, got, want)
		}
	}
	if _, err := engine.Get(ctx, []byte("gone")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("deleted key error = %v, want ErrKeyNotFound", err)
	}

	if err := engine.WriteBatch(ctx, &Batch{}); err != nil {
		t.Errorf("empty batch error = %v", err)
	}
}

func TestBadgerEngine_ScanCancelled(t *testing.T) {
	engine := newTestEngine(t)
	for _, k := range []string{"tm:1", "tm:2"} {
		if err := engine.Set(context.Background(), []byte(k), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := engine.Scan(ctx, []byte("tm:"), func(_, _ []byte) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() with cancelled ctx error = %v, want context.Canceled", err)
	}
}

func TestBadgerEngine_InMemory(t *testing.T) {
	cfg := DefaultKVConfig("")
	cfg.InMemory = true
	cfg.Badger.GCInterval = "1h"

	engine, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if reclaimed, err := engine.GC(ctx); err != nil || reclaimed != 0 {
		t.Errorf("GC() = %d, %v, want 0, nil", reclaimed, err)
	}
}

func TestBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(KVConfig{}, nil); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestBadgerEngine_GC(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if err := engine.Set(ctx, []byte{byte(i)}, make([]byte, 1000)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 50; i++ {
		if err := engine.Delete(ctx, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := engine.GC(ctx); err != nil {
		t.Fatal(err)
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.LastGCTime == 0 {
		t.Error("LastGCTime should be set after GC")
	}
}

func TestBadgerEngine_Closed(t *testing.T) {
	cfg := DefaultKVConfig(t.TempDir())
	cfg.Badger.GCInterval = "1h"
	engine, err := NewBadgerEngine(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if _, err := engine.Get(ctx, []byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after close error = %v, want ErrClosed", err)
	}
	if err := engine.Set(ctx, []byte("k"), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after close error = %v, want ErrClosed", err)
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestEngine(t)
	registry := prometheus.NewRegistry()

	if err := engine.RegisterMetrics(registry); err != nil {
		t.Fatal(err)
	}
	if err := engine.RegisterMetrics(registry); err == nil {
		t.Error("second RegisterMetrics() should report a duplicate")
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"tokvault_badger_lsm_size_bytes",
		"tokvault_badger_total_size_bytes",
		"tokvault_badger_gc_bytes_reclaimed_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
