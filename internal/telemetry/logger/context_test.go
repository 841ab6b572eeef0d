package logger

import (
	"context"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	l, buf := newJSON(t, "info")

	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("from context")

	if buf.Len() == 0 {
		t.Error("logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to Default()")
	}
}

func TestKeyhashAndRun(t *testing.T) {
	ctx := context.Background()
	if KeyhashFromContext(ctx) != "" {
		t.Error("empty context has a keyhash")
	}
	if _, ok := RunFromContext(ctx); ok {
		t.Error("empty context has a run")
	}

	ctx = WithRun(WithKeyhash(ctx, "deadbeef"), 4)
	if got := KeyhashFromContext(ctx); got != "deadbeef" {
		t.Errorf("KeyhashFromContext() = %q", got)
	}
	if run, ok := RunFromContext(ctx); !ok || run != 4 {
		t.Errorf("RunFromContext() = %d, %v", run, ok)
	}
}

func TestL_EnrichesLogger(t *testing.T) {
	l, buf := newJSON(t, "info")

	ctx := WithLogger(context.Background(), l)
	ctx = WithRun(WithKeyhash(ctx, "deadbeef"), 2)
	L(ctx).Info("saved")

	entry := decode(t, buf)
	if entry["keyhash"] != "deadbeef" {
		t.Errorf("keyhash = %v", entry["keyhash"])
	}
	if entry["run"] != 2.0 {
		t.Errorf("run = %v", entry["run"])
	}
}

func TestL_NoIdentity(t *testing.T) {
	l, buf := newJSON(t, "info")

	L(WithLogger(context.Background(), l)).Info("plain")

	entry := decode(t, buf)
	if _, ok := entry["keyhash"]; ok {
		t.Error("keyhash should be absent")
	}
}
