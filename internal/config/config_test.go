package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `
output_dir = /tmp/marked
scale = 2
suffix = "-notes"

[capture]
color = #00FF0080
stroke_width = 4.5
erase_radius = 10

[export]
verify = false
busy_policy = queue

[notify]
export = true
failure: true
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.OutputDir != "/tmp/marked" {
		t.Errorf("Expected output_dir '/tmp/marked', got '%s'", cfg.OutputDir)
	}
	if cfg.Scale != 2 {
		t.Errorf("Expected scale 2, got %g", cfg.Scale)
	}
	if cfg.Suffix != "-notes" {
		t.Errorf("Expected suffix '-notes', got %q", cfg.Suffix)
	}
	if c := cfg.Capture.Color; c.R != 0 || c.G != 0xFF || c.B != 0 || c.A != 0x80 {
		t.Errorf("Unexpected capture color: %+v", c)
	}
	if cfg.Capture.StrokeWidth != 4.5 {
		t.Errorf("Expected stroke_width 4.5, got %g", cfg.Capture.StrokeWidth)
	}
	if cfg.Capture.EraseRadius != 10 {
		t.Errorf("Expected erase_radius 10, got %d", cfg.Capture.EraseRadius)
	}
	if cfg.Capture.TextSize != 16 {
		t.Errorf("Expected default text_size 16, got %g", cfg.Capture.TextSize)
	}
	if cfg.Export.Verify {
		t.Error("Expected export.verify to be false")
	}
	if cfg.Export.BusyPolicy != "queue" {
		t.Errorf("Expected busy_policy 'queue', got '%s'", cfg.Export.BusyPolicy)
	}
	if !cfg.Notify.Export || !cfg.Notify.Failure {
		t.Errorf("Expected export and failure notifications, got %+v", cfg.Notify)
	}
	if cfg.Notify.Copy {
		t.Error("Expected notify.copy to be false")
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"scale = 0",
		"scale = lots",
		"[capture]\ncolor = purple",
		"[capture]\nerase_radius = -1",
		"[export]\nbusy_policy = drop",
		"[notify]\nexport = maybe",
	} {
		if _, err := Parse(strings.NewReader(input)); err == nil {
			t.Errorf("Expected error parsing %q", input)
		}
	}
}

func TestParseIgnoresUnknown(t *testing.T) {
	input := `
# comment
// another
theme = dark
[window]
width = 100
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Scale != New().Scale {
		t.Errorf("Expected default scale, got %g", cfg.Scale)
	}
}

func TestCircular(t *testing.T) {
	input := `output_dir = /home/user/marked
scale = 1.25
suffix = " (reviewed)"

[capture]
color = #112233
text_size = 20
history_limit = 50

[export]
compress = true

[notify]
export = true
copy = true
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Initial parse failed: %v", err)
	}

	generated := cfg.String()

	cfg2, err := Parse(strings.NewReader(generated))
	if err != nil {
		t.Fatalf("Circular parse failed: %v", err)
	}

	if cfg.OutputDir != cfg2.OutputDir {
		t.Errorf("OutputDir mismatch: %q vs %q", cfg.OutputDir, cfg2.OutputDir)
	}
	if cfg.Scale != cfg2.Scale {
		t.Errorf("Scale mismatch: %g vs %g", cfg.Scale, cfg2.Scale)
	}
	if cfg.Suffix != cfg2.Suffix {
		t.Errorf("Suffix mismatch: %q vs %q", cfg.Suffix, cfg2.Suffix)
	}
	if cfg.Capture != cfg2.Capture {
		t.Errorf("Capture mismatch: %+v vs %+v", cfg.Capture, cfg2.Capture)
	}
	if cfg.Export != cfg2.Export {
		t.Errorf("Export mismatch: %+v vs %+v", cfg.Export, cfg2.Export)
	}
	if cfg.Notify != cfg2.Notify {
		t.Errorf("Notify mismatch: %+v vs %+v", cfg.Notify, cfg2.Notify)
	}
}

func TestLoaderOverrideAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.rc")
	cfg := New()
	cfg.Scale = 3
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	l := NewLoader("v1.0.0", path)
	if got := l.GetConfigPath(); got != path {
		t.Fatalf("Expected config path %q, got %q", path, got)
	}
	loaded, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Scale != 3 {
		t.Errorf("Expected scale 3, got %g", loaded.Scale)
	}
}

func TestLoaderMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	l := NewLoader("v1.0.0", filepath.Join(t.TempDir(), "absent.rc"))
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Suffix != "-annotated" {
		t.Errorf("Expected default suffix, got %q", cfg.Suffix)
	}
	if _, err := os.Stat(l.DefaultPath()); !os.IsNotExist(err) {
		t.Errorf("Expected no config written, stat err %v", err)
	}
}
