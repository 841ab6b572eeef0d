package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	c, err := Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalog_PutGetDelete(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	rec := Record{
		Keyhash:  "abc",
		Key:      map[string]any{"experiment": "lr-sweep"},
		Dir:      "/data/abc",
		Serial:   12,
		Runs:     2,
		Retained: 5,
		Latest:   "000000011_2024-01-01-00-00-00.json",
	}
	if err := c.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Serial != 12 || got.Runs != 2 || got.Retained != 5 || got.Latest != rec.Latest {
		t.Errorf("Get() = %+v", got)
	}
	if got.UpdatedAt == 0 {
		t.Error("UpdatedAt should be filled in")
	}
	key, ok := got.Key.(map[string]any)
	if !ok || key["experiment"] != "lr-sweep" {
		t.Errorf("Key = %#v", got.Key)
	}

	if err := c.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
	if err := c.Delete(ctx, "abc"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestCatalog_PutRequiresKeyhash(t *testing.T) {
	c := openTest(t)
	if err := c.Put(context.Background(), Record{}); err == nil {
		t.Error("Put() without keyhash should fail")
	}
}

func TestCatalog_ListSorted(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	for _, h := range []string{"ccc", "aaa", "bbb"} {
		if err := c.Put(ctx, Record{Keyhash: h}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, rec := range list {
		got = append(got, rec.Keyhash)
	}
	if strings.Join(got, ",") != "aaa,bbb,ccc" {
		t.Errorf("List() = %v", got)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Records != 3 {
		t.Errorf("Stats().Records = %d, want 3", stats.Records)
	}
}

func TestCatalog_Prune(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	live := t.TempDir()
	gone := filepath.Join(t.TempDir(), "removed")
	c.Put(ctx, Record{Keyhash: "live", Dir: live})
	c.Put(ctx, Record{Keyhash: "gone", Dir: gone})

	removed, err := c.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if len(removed) != 1 || removed[0] != "gone" {
		t.Errorf("Prune() = %v", removed)
	}
	if _, err := c.Get(ctx, "live"); err != nil {
		t.Errorf("live record was pruned: %v", err)
	}
}

func TestCatalog_GC(t *testing.T) {
	c := openTest(t)
	if _, err := c.GC(context.Background()); err != nil {
		t.Errorf("GC() error = %v", err)
	}
	stats, _ := c.Stats(context.Background())
	if stats.LastGC == 0 {
		t.Error("LastGC should be set after GC")
	}
}

func TestCatalog_Persistence(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig(base)
	cfg.GCInterval = 0

	c, err := Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c.Put(context.Background(), Record{Keyhash: "k1", Serial: 3})
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, DirName)); err != nil {
		t.Fatalf("catalog dir missing: %v", err)
	}

	c2, err := Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c2.Close()
	got, err := c2.Get(context.Background(), "k1")
	if err != nil || got.Serial != 3 {
		t.Errorf("Get() after reopen = %+v, %v", got, err)
	}
}

func TestCatalog_Closed(t *testing.T) {
	cfg := Config{InMemory: true}
	c, err := Open(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := c.Put(context.Background(), Record{Keyhash: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() after close error = %v", err)
	}
}

func TestCatalog_RegisterMetrics(t *testing.T) {
	c := openTest(t)
	reg := prometheus.NewRegistry()
	c.RegisterMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"snapkeep_catalog_lsm_size_bytes",
		"snapkeep_catalog_value_log_size_bytes",
		"snapkeep_catalog_last_gc_timestamp_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestOpen_RequiresDir(t *testing.T) {
	if _, err := Open(Config{}, nil); err == nil {
		t.Error("Open() without dir should fail")
	}
}
