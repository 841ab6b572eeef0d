package serializer

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func samplePayload() map[string]any {
	return map[string]any{
		"epoch": 12.0,
		"loss":  0.125,
		"name":  "run-a",
		"done":  false,
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []Serializer{JSON(), YAML(), MsgPack()} {
		t.Run(s.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := s.Encode(&buf, samplePayload()); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := s.Decode(&buf)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got["name"] != "run-a" || got["done"] != false {
				t.Errorf("Decode() = %v", got)
			}
			if f, ok := toFloat(got["loss"]); !ok || f != 0.125 {
				t.Errorf("loss = %#v", got["loss"])
			}
			if f, ok := toFloat(got["epoch"]); !ok || f != 12 {
				t.Errorf("epoch = %#v", got["epoch"])
			}
		})
	}
}

func TestJSON_KeepsIntegersAndFloatsApart(t *testing.T) {
	in := map[string]any{
		"epoch": 3,
		"loss":  2.0,
		"rate":  0.5,
		"zero":  0.0,
		"big":   1e22,
		"nested": map[string]any{
			"step":  7,
			"score": -4.0,
		},
		"list": []any{1, 1.0, "x"},
	}

	var buf bytes.Buffer
	if err := JSON().Encode(&buf, in); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"loss": 2.0`) {
		t.Errorf("integral float written without fraction:\n%s", buf.String())
	}

	got, err := JSON().Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Decode() = %#v, want %#v", got, in)
	}
}

func TestJSON_DecodesPlainFiles(t *testing.T) {
	got, err := JSON().Decode(strings.NewReader(`{"a": 1, "b": 1.5, "c": 1e3, "d": 99999999999999999999}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := map[string]any{"a": 1, "b": 1.5, "c": 1000.0, "d": 1e20}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %#v, want %#v", got, want)
	}
}

func TestMsgPack_NestedMapsDecodeAsStringKeyed(t *testing.T) {
	s := MsgPack()
	var buf bytes.Buffer
	in := map[string]any{"opt": map[string]any{"lr": 0.5}}
	if err := s.Encode(&buf, in); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out, err := s.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	nested, ok := out["opt"].(map[string]any)
	if !ok {
		t.Fatalf("opt = %T, want map[string]any", out["opt"])
	}
	if nested["lr"] != 0.5 {
		t.Errorf("lr = %v", nested["lr"])
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		s    Serializer
		want string
	}{
		{JSON(), "latest.json"},
		{YAML(), "latest.yaml"},
		{MsgPack(), "latest.msgpack"},
	}
	for _, tt := range tests {
		if got := tt.s.Extension("latest"); got != tt.want {
			t.Errorf("%s.Extension() = %q, want %q", tt.s.Name(), got, tt.want)
		}
	}
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{
		"":        "json",
		"JSON":    "json",
		"yml":     "yaml",
		"msgpack": "msgpack",
	} {
		s, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) error = %v", name, err)
		}
		if s.Name() != want {
			t.Errorf("ByName(%q) = %s, want %s", name, s.Name(), want)
		}
	}

	if _, err := ByName("pickle"); !errors.Is(err, ErrUnknownSerializer) {
		t.Errorf("ByName(pickle) error = %v", err)
	}
}

func TestSaveFileLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, JSON().Extension("000000000_x"))

	n, err := SaveFile(path, JSON(), samplePayload())
	if err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != n {
		t.Errorf("SaveFile() = %d bytes, file has %d", n, info.Size())
	}

	got, err := LoadFile(path, JSON())
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if !reflect.DeepEqual(got, samplePayload()) {
		t.Errorf("LoadFile() = %v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), JSON())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path, JSON())
	if err == nil || !strings.Contains(err.Error(), "decode json") {
		t.Errorf("LoadFile() error = %v", err)
	}
}

func TestSaveFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "x.json")
	if _, err := SaveFile(path, JSON(), samplePayload()); err == nil {
		t.Error("SaveFile() into a missing directory should fail")
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
