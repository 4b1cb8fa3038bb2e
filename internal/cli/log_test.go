package cli

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var timestamp = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{2} `)

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, log.InfoLevel).Info("split", "root", "object")

	line := buf.String()
	if !timestamp.MatchString(line) {
		t.Errorf("log line %q does not start with an HH:MM:SS.ms timestamp", line)
	}
	if !strings.Contains(line, "split root=object") {
		t.Errorf("log line %q is missing the message and its fields", line)
	}
}

func TestSetLogLevelShowsEngineEvents(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	h := newLogHooks(c.Logger)

	h.OnUnflatten(context.Background(), "list", 4, 2, 0, time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Fatalf("unflatten logged at info level: %q", buf.String())
	}

	c.SetLogLevel(LogDebug)
	h.OnUnflatten(context.Background(), "list", 4, 2, 0, time.Millisecond, nil)
	h.OnContextExit(context.Background(), "merge", "t1", "inner_merge", errors.New("out of order"))
	out := buf.String()
	for _, want := range []string{"unflatten root=list nodes=4 leaves=2", "kind=merge", "out of order"} {
		if !strings.Contains(out, want) {
			t.Errorf("debug log missing %q:\n%s", want, out)
		}
	}
}

func TestLoadGraphReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	ctx := withLogger(context.Background(), newLogger(&buf, log.DebugLevel))

	g, err := loadGraph(ctx, writeManifest(t, modelManifest))
	if err != nil {
		t.Fatalf("loadGraph() error: %v", err)
	}
	if g.Root == nil {
		t.Fatal("loadGraph() returned no root")
	}

	out := buf.String()
	if !regexp.MustCompile(`Loaded graph\.toml \(\d+(\.\d+)?[µm]?s\)`).MatchString(out) {
		t.Errorf("progress line missing from %q", out)
	}
	if !strings.Contains(out, "manifest file=") {
		t.Errorf("debug manifest line missing from %q", out)
	}
}

func TestLoadGraphFailureLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	ctx := withLogger(context.Background(), newLogger(&buf, log.InfoLevel))

	if _, err := loadGraph(ctx, writeManifest(t, "root = ")); err == nil {
		t.Fatal("loadGraph() accepted a broken manifest")
	}
	if strings.Contains(buf.String(), "Loaded") {
		t.Errorf("failed load reported progress: %q", buf.String())
	}
}

func TestLoggerTravelsWithContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("loggerFromContext() without a logger should fall back to log.Default()")
	}

	c := New(&bytes.Buffer{}, LogInfo)
	ctx := withLogger(context.Background(), c.Logger)
	if loggerFromContext(ctx) != c.Logger {
		t.Error("loggerFromContext() did not return the attached CLI logger")
	}
}
