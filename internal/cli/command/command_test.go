package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/snapshot"
)

const startFlag = "2026-03-01T12:00:00Z"

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testEnv is a base directory plus a configuration file pointing at it.
type testEnv struct {
	base   string
	config string
}

func newEnv(t *testing.T, retentionYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		base:   filepath.Join(dir, "snaps"),
		config: filepath.Join(dir, "snapkeep.yaml"),
	}
	content := "store:\n  base_dir: " + env.base + "\nlog:\n  level: error\n"
	if retentionYAML != "" {
		content += "retention:\n" + retentionYAML
	}
	if err := os.WriteFile(env.config, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(context.Background(), t, args...)
}

func (e *testEnv) runContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := e.runWith(ctx, &syncBuffer{}, args...)
	return out, err
}

func (e *testEnv) runWith(ctx context.Context, stdout *syncBuffer, args ...string) (string, string, error) {
	var stderr syncBuffer
	app := App()
	app.Writer = stdout
	app.ErrWriter = &stderr
	err := app.RunContext(ctx, append([]string{"snapkeep", "--config", e.config}, args...))
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) simulate(t *testing.T, global []string, args ...string) SimulateSummary {
	t.Helper()
	argv := append(append([]string{}, global...), "-o", "json", "simulate", "--quiet", "--start", startFlag)
	out, err := e.run(t, append(argv, args...)...)
	if err != nil {
		t.Fatalf("simulate error = %v", err)
	}
	var summary SimulateSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	return summary
}

func (e *testEnv) streamDir(t *testing.T, key any) string {
	t.Helper()
	hash, err := snapshot.KeyHash(key)
	if err != nil {
		t.Fatal(err)
	}
	return filepath.Join(e.base, hash)
}

func decodeJSON[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "snapkeep" {
		t.Errorf("Name = %q", app.Name)
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"keyhash", "history", "show", "keys", "verify", "journal", "catalog", "simulate", "follow", "version", "config"} {
		if !names[name] {
			t.Errorf("missing command %s", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for name := range flagKeys {
		if !flags[name] {
			t.Errorf("flagKeys names unknown flag %s", name)
		}
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"quadratic", "quadratic"},
		{`"quoted"`, "quoted"},
		{"42", 42.0},
		{`{"lr":0.1}`, map[string]any{"lr": 0.1}},
		{"{broken", "{broken"},
	}
	for _, tt := range tests {
		if got := parseKey(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseKey(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestKeyhashCommand(t *testing.T) {
	env := newEnv(t, "")

	out, err := env.run(t, "keyhash", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	want, _ := snapshot.KeyHash("quadratic")
	if strings.TrimSpace(out) != want {
		t.Errorf("keyhash = %q, want %q", out, want)
	}

	out, err = env.run(t, "-o", "json", "keyhash", `{"b":1,"a":2}`)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeJSON[map[string]any](t, out)
	want, _ = snapshot.KeyHash(map[string]int{"a": 2, "b": 1})
	if got["keyhash"] != want {
		t.Errorf("keyhash = %v, want %s", got["keyhash"], want)
	}

	if _, err := env.run(t, "keyhash"); err == nil {
		t.Error("keyhash without KEY should fail")
	}
}

func TestSimulate_AndHistoryAndShow(t *testing.T) {
	env := newEnv(t, `  type: and
  policies:
    - type: every
      interval: 3
    - type: at_most
      max_entries: 5
`)

	summary := env.simulate(t, nil, "--steps", "100")
	if want := []uint64{0, 27, 63, 96, 99}; !reflect.DeepEqual(summary.Retained, want) {
		t.Errorf("Retained = %v, want %v", summary.Retained, want)
	}
	if summary.Steps != 100 || summary.Accepted != 34 || summary.NextSerial != 100 || summary.Run != 1 {
		t.Errorf("summary = %+v", summary)
	}

	out, err := env.run(t, "-o", "json", "history", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeJSON[[]historyRow](t, out)
	var serials []uint64
	for _, r := range rows {
		serials = append(serials, r.Serial)
	}
	if !reflect.DeepEqual(serials, summary.Retained) {
		t.Errorf("history = %v", serials)
	}
	if rows[0].Filename != "000000000_2026-03-01-12-00-00.json" {
		t.Errorf("first filename = %q", rows[0].Filename)
	}
	if want := time.Date(2026, 3, 1, 12, 1, 39, 0, time.UTC); !rows[4].Time.Equal(want) {
		t.Errorf("last time = %v, want %v", rows[4].Time, want)
	}

	out, err = env.run(t, "-o", "json", "show", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	if values := decodeJSON[map[string]any](t, out); values["step"] != 99.0 {
		t.Errorf("latest values = %v", values)
	}

	out, err = env.run(t, "-o", "json", "show", "--serial", "27", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	if values := decodeJSON[map[string]any](t, out); values["step"] != 27.0 {
		t.Errorf("serial 27 values = %v", values)
	}

	if _, err := env.run(t, "show", "--serial", "5", "quadratic"); err == nil || !strings.Contains(err.Error(), "not retained") {
		t.Errorf("show culled serial error = %v", err)
	}
}

func TestSimulate_Extremum(t *testing.T) {
	tests := []struct {
		kind string
		want []uint64
	}{
		{"minimum", []uint64{50}},
		{"maximum", []uint64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			env := newEnv(t, "  type: "+tt.kind+"\n  field: value\n")
			summary := env.simulate(t, nil, "--steps", "100")
			if !reflect.DeepEqual(summary.Retained, tt.want) {
				t.Errorf("Retained = %v, want %v", summary.Retained, tt.want)
			}

			files, err := filepath.Glob(filepath.Join(env.streamDir(t, "quadratic"), "0*.json"))
			if err != nil {
				t.Fatal(err)
			}
			if len(files) != 1 {
				t.Errorf("snapshot files = %v", files)
			}
		})
	}
}

func TestSimulate_SecondRunContinues(t *testing.T) {
	env := newEnv(t, "")

	env.simulate(t, nil, "--steps", "3")
	summary := env.simulate(t, nil, "--steps", "2")
	if summary.Run != 2 || summary.NextSerial != 5 {
		t.Errorf("summary = %+v", summary)
	}
	if want := []uint64{0, 1, 2, 3, 4}; !reflect.DeepEqual(summary.Retained, want) {
		t.Errorf("Retained = %v", summary.Retained)
	}
}

func TestVerifyCommand(t *testing.T) {
	env := newEnv(t, "  type: every\n  interval: 10\n")
	env.simulate(t, nil, "--steps", "30")

	if _, err := env.run(t, "verify", "quadratic"); err != nil {
		t.Fatalf("verify clean stream: %v", err)
	}

	orphan := filepath.Join(env.streamDir(t, "quadratic"), "000000999_2026-03-01-12-00-00.json")
	if err := os.WriteFile(orphan, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "-o", "json", "verify", "quadratic")
	if err == nil {
		t.Fatal("verify should fail with an orphan file")
	}
	rep := decodeJSON[snapshot.Report](t, out)
	if !reflect.DeepEqual(rep.Orphans, []string{filepath.Base(orphan)}) {
		t.Errorf("Orphans = %v", rep.Orphans)
	}

	hash, _ := snapshot.KeyHash("quadratic")
	if _, err := env.run(t, "verify", "--repair", "--keyhash", hash); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("orphan still present: %v", err)
	}
	if _, err := env.run(t, "verify", "quadratic"); err != nil {
		t.Errorf("verify after repair: %v", err)
	}
}

func TestKeysCommand(t *testing.T) {
	env := newEnv(t, "  type: every\n  interval: 10\n")

	out, err := env.run(t, "-o", "json", "keys")
	if err != nil {
		t.Fatal(err)
	}
	if rows := decodeJSON[[]keyRow](t, out); len(rows) != 0 {
		t.Errorf("keys before any save = %v", rows)
	}

	env.simulate(t, nil, "--steps", "100")
	env.simulate(t, nil, "--steps", "1", "--key", `{"lr":0.1}`)

	out, err = env.run(t, "-o", "json", "keys")
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeJSON[[]keyRow](t, out)
	if len(rows) != 2 {
		t.Fatalf("keys = %v", rows)
	}
	byKey := map[string]keyRow{}
	for _, r := range rows {
		byKey[r.Key] = r
	}
	if r := byKey["quadratic"]; r.Retained != 10 || r.Serial != 100 || r.Latest == "" {
		t.Errorf("quadratic = %+v", r)
	}
	if r, ok := byKey[`{"lr":0.1}`]; !ok || r.Retained != 1 {
		t.Errorf("keys = %+v", byKey)
	}
}

func TestJournalCommand(t *testing.T) {
	env := newEnv(t, "  type: every\n  interval: 2\n")
	env.simulate(t, []string{"--journal"}, "--steps", "10")

	out, err := env.run(t, "-o", "json", "journal", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeJSON[[]journalRow](t, out)
	if len(rows) != 10 {
		t.Fatalf("journal rows = %d", len(rows))
	}
	for i, r := range rows {
		want := "accepted"
		if i%2 == 1 {
			want = "discarded"
		}
		if r.Serial != uint64(i) || r.Outcome != want {
			t.Errorf("row %d = %+v", i, r)
		}
	}

	out, err = env.run(t, "-o", "json", "journal", "--tail", "3", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	if rows := decodeJSON[[]journalRow](t, out); len(rows) != 3 || rows[2].Serial != 9 {
		t.Errorf("tail = %+v", rows)
	}

	out, err = env.run(t, "journal", "--compact", "4", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "dropped 6 records" {
		t.Errorf("compact output = %q", out)
	}

	summary := env.simulate(t, []string{"--journal"}, "--steps", "1")
	if summary.NextSerial != 11 {
		t.Errorf("NextSerial after compaction = %d", summary.NextSerial)
	}
}

func TestCatalogCommands(t *testing.T) {
	env := newEnv(t, "")
	env.simulate(t, []string{"--catalog"}, "--steps", "5")

	out, err := env.run(t, "--catalog", "-o", "json", "keys")
	if err != nil {
		t.Fatal(err)
	}
	rows := decodeJSON[[]keyRow](t, out)
	if len(rows) != 1 || rows[0].Key != "quadratic" || rows[0].Retained != 5 || rows[0].Serial != 5 {
		t.Fatalf("catalog keys = %+v", rows)
	}

	out, err = env.run(t, "-o", "json", "catalog", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if stats := decodeJSON[map[string]any](t, out); stats["Records"] != 1.0 {
		t.Errorf("stats = %v", stats)
	}

	out, err = env.run(t, "-o", "json", "catalog", "prune")
	if err != nil {
		t.Fatal(err)
	}
	if removed := decodeJSON[[]string](t, out); len(removed) != 0 {
		t.Errorf("prune with live stream removed %v", removed)
	}

	if err := os.RemoveAll(env.streamDir(t, "quadratic")); err != nil {
		t.Fatal(err)
	}
	out, err = env.run(t, "-o", "json", "catalog", "prune")
	if err != nil {
		t.Fatal(err)
	}
	hash, _ := snapshot.KeyHash("quadratic")
	if removed := decodeJSON[[]string](t, out); !reflect.DeepEqual(removed, []string{hash}) {
		t.Errorf("prune removed %v", removed)
	}

	if _, err := env.run(t, "catalog", "gc"); err != nil {
		t.Errorf("gc: %v", err)
	}
}

func TestSimulate_MetricsOut(t *testing.T) {
	env := newEnv(t, "")
	path := filepath.Join(t.TempDir(), "metrics.prom")
	env.simulate(t, []string{"--catalog"}, "--steps", "10", "--metrics-out", path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		`snapkeep_saves_total{outcome="accepted"} 10`,
		"snapkeep_history_entries 10",
		"snapkeep_catalog_",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSealedSnapshots(t *testing.T) {
	env := newEnv(t, "")
	env.simulate(t, []string{"--passphrase", "correct horse"}, "--steps", "3")

	out, err := env.run(t, "--passphrase", "correct horse", "-o", "json", "show", "quadratic")
	if err != nil {
		t.Fatal(err)
	}
	if values := decodeJSON[map[string]any](t, out); values["step"] != 2.0 {
		t.Errorf("values = %v", values)
	}

	if _, err := env.run(t, "show", "quadratic"); err == nil {
		t.Error("show without passphrase should fail")
	}
}

func TestFollowCommand(t *testing.T) {
	env := newEnv(t, "")
	dir := env.streamDir(t, "quadratic")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout syncBuffer
	done := make(chan error, 1)
	go func() {
		_, _, err := env.runWith(ctx, &stdout, "follow", "quadratic")
		done <- err
	}()

	store := snapshot.New()
	if err := store.Configure(snapshot.Config{Key: "quadratic", BaseDir: env.base, Policy: retention.AtMost(1)}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !strings.Contains(stdout.String(), "culled") && time.Now().Before(deadline) {
		if _, err := store.Save(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}

	out := stdout.String()
	if !strings.Contains(out, "retained") || !strings.Contains(out, "culled") {
		t.Errorf("follow output = %q", out)
	}
}

func TestHistory_MissingStream(t *testing.T) {
	env := newEnv(t, "")
	if _, err := env.run(t, "history", "nothing-here"); err == nil || !strings.Contains(err.Error(), "no snapshots") {
		t.Errorf("history error = %v", err)
	}
	if _, err := env.run(t, "history", "--keyhash", "../etc"); err == nil {
		t.Error("path-like keyhash should be rejected")
	}
}

func TestVersionAndConfig(t *testing.T) {
	env := newEnv(t, "")

	out, err := env.run(t, "-o", "json", "version")
	if err != nil {
		t.Fatal(err)
	}
	if info := decodeJSON[map[string]any](t, out); info["version"] == "" || info["go_version"] == "" {
		t.Errorf("version = %v", info)
	}

	out, err = env.run(t, "--passphrase", "secretpass", "--serializer", "yaml", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "secretpass") {
		t.Error("config show leaked the passphrase")
	}
	for _, want := range []string{"base_dir: " + env.base, "serializer: yaml", "level: error"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestBefore_InvalidConfig(t *testing.T) {
	env := newEnv(t, "  type: every\n")
	if _, err := env.run(t, "keys"); err == nil {
		t.Error("every without interval should fail configuration")
	}

	env = newEnv(t, "")
	if _, err := env.run(t, "--output", "csv", "keys"); err == nil {
		t.Error("unknown output format should fail")
	}
}
