package config_test

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyptix/observable-go/pkg/config"
	"github.com/gyptix/observable-go/pkg/observable"
)

// TestParseFull tests parsing every section.
func TestParseFull(t *testing.T) {
	yaml := `
observe:
  watch: title
  deep: true
  alter: true
  isolate: true
log_level: debug
capture: session.olog
bridge:
  listen: 127.0.0.1:8765
  path: /mutations
  advertise: true
  name: settings
console:
  capacity: 64
document:
  title: Hello
  count: 3
  items: [a, b]
  nested:
    ok: true
`
	c, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	want := config.ObserveConfig{Watch: "title", Deep: true, Alter: true, Isolate: true}
	if c.Observe != want {
		t.Errorf("Observe = %+v, want %+v", c.Observe, want)
	}
	if c.Capture != "session.olog" {
		t.Errorf("Capture = %q, want session.olog", c.Capture)
	}
	wantBridge := config.BridgeConfig{Listen: "127.0.0.1:8765", Path: "/mutations", Advertise: true, Name: "settings"}
	if c.Bridge != wantBridge {
		t.Errorf("Bridge = %+v", c.Bridge)
	}
	if c.Console.Capacity != 64 {
		t.Errorf("Console.Capacity = %d, want 64", c.Console.Capacity)
	}
	level, err := c.Level()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("Level() = %v, %v; want DEBUG", level, err)
	}

	target, err := c.Target()
	if err != nil {
		t.Fatalf("Target() failed: %v", err)
	}
	obj, ok := target.(*observable.Object)
	if !ok {
		t.Fatalf("Target() = %T, want *Object", target)
	}
	if got := strings.Join(obj.Keys(), ","); got != "title,count,items,nested" {
		t.Errorf("key order = %s, want document order", got)
	}
	if v, _ := obj.Get("count"); v != 3 {
		t.Errorf("count = %v (%T), want 3", v, v)
	}
	items, _ := obj.Get("items")
	if seq, ok := items.(*observable.Sequence); !ok || seq.Len() != 2 {
		t.Errorf("items = %v, want 2-element sequence", items)
	}
}

// TestObservationAppliesSettings tests that the loaded settings drive the
// observation.
func TestObservationAppliesSettings(t *testing.T) {
	yaml := `
observe:
  watch: a
  alter: true
document:
  a: 1
  b: 2
`
	c, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	obs, err := c.Observation()
	if err != nil {
		t.Fatalf("Observation() failed: %v", err)
	}

	st := obs.Settings()
	if st.Watch != "a" || !st.HasWatch || !st.Alter || st.Deep {
		t.Errorf("Settings() = %+v", st)
	}

	var changed []any
	obs.On(&observable.Subscriber{Changed: func(owner, key, old, new any) error {
		changed = append(changed, key)
		return nil
	}})
	_ = obs.Set("b", 3)
	_ = obs.Set("a", 1)
	_ = obs.Set("a", 5)
	if len(changed) != 1 || changed[0] != "a" {
		t.Errorf("changed keys = %v, want [a]", changed)
	}
}

// TestSequenceDocument tests a sequence at the document root.
func TestSequenceDocument(t *testing.T) {
	c, err := config.Parse([]byte("document: [1, two, {k: v}]\n"))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	target, err := c.Target()
	if err != nil {
		t.Fatalf("Target() failed: %v", err)
	}
	seq, ok := target.(*observable.Sequence)
	if !ok {
		t.Fatalf("Target() = %T, want *Sequence", target)
	}
	if seq.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", seq.Len())
	}
	if v, _ := seq.At(1); v != "two" {
		t.Errorf("At(1) = %v, want two", v)
	}
	if v, _ := seq.At(2); v == nil {
		t.Error("At(2) should be an object")
	}
}

// TestAliasesShareTargets tests that YAML aliases become one target.
func TestAliasesShareTargets(t *testing.T) {
	yaml := `
document:
  first: &shared
    v: 1
  second: *shared
`
	c, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	target, err := c.Target()
	if err != nil {
		t.Fatalf("Target() failed: %v", err)
	}
	obj := target.(*observable.Object)
	first, _ := obj.Get("first")
	second, _ := obj.Get("second")
	if first != second {
		t.Error("aliased nodes should convert to the same target")
	}

	obs := observable.Observe(obj).Deep(true)
	if obs.Get("first") != obs.Get("second") {
		t.Error("aliased targets should share one wrapper")
	}
}

// TestEmptyDocument tests defaults when no document is given.
func TestEmptyDocument(t *testing.T) {
	for _, yaml := range []string{"", "log_level: warn\n", "document:\n"} {
		c, err := config.Parse([]byte(yaml))
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", yaml, err)
		}
		target, err := c.Target()
		if err != nil {
			t.Fatalf("Target() failed: %v", err)
		}
		if obj, ok := target.(*observable.Object); !ok || obj.Len() != 0 {
			t.Errorf("Parse(%q).Target() = %v, want empty object", yaml, target)
		}
	}
}

// TestParseErrors tests validation failures.
func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantLine int
		wantMsg  string
	}{
		{"invalid yaml", "observe: [", 0, "failed to parse YAML"},
		{"scalar document", "log_level: info\ndocument: 42\n", 2, "document must be a mapping or a sequence"},
		{"negative capacity", "console:\n  capacity: -1\n", 0, "console capacity must not be negative"},
		{"bad level", "log_level: loud\n", 0, "invalid log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			var le *config.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("error = %v, want *LoadError", err)
			}
			if le.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", le.Line, tt.wantLine)
			}
			if le.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", le.Message, tt.wantMsg)
			}
		})
	}
}

// TestLoad tests loading from a file and error file attribution.
func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("document:\n  a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(good); err != nil {
		t.Errorf("Load(good) failed: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("document: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := config.Load(bad)
	var le *config.LoadError
	if !errors.As(err, &le) || le.File != bad {
		t.Errorf("Load(bad) error = %v, want LoadError for %s", err, bad)
	}
	if !strings.HasPrefix(err.Error(), bad+":1: ") {
		t.Errorf("Error() = %q, want file:line prefix", err.Error())
	}

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want fs.ErrNotExist", err)
	}
}
