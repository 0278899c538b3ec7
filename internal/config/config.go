package config

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/example/pagemark/internal/annotation"
)

// Capture holds the drawing defaults, in viewer pixels.
type Capture struct {
	Color        color.RGBA
	StrokeWidth  float64
	TextSize     float64
	DedupPx      float64
	EraseRadius  int
	HistoryLimit int
}

// Export holds save settings.
type Export struct {
	Compress   bool
	Verify     bool
	BusyPolicy string
}

// Notify holds notification settings.
type Notify struct {
	Export  bool
	Failure bool
	Copy    bool
}

// Config holds the application configuration.
type Config struct {
	OutputDir string
	Scale     float64
	Suffix    string
	Capture   Capture
	Export    Export
	Notify    Notify
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Scale:  1.5,
		Suffix: "-annotated",
		Capture: Capture{
			Color:       annotation.DefaultColor,
			StrokeWidth: 3,
			TextSize:    16,
			DedupPx:     2,
			EraseRadius: 6,
		},
		Export: Export{
			Verify:     true,
			BusyPolicy: "restart",
		},
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.OutputDir != "" {
		fmt.Fprintf(&sb, "output_dir = %s\n", c.OutputDir)
	}
	fmt.Fprintf(&sb, "scale = %g\n", c.Scale)
	fmt.Fprintf(&sb, "suffix = %q\n", c.Suffix)
	sb.WriteString("\n")

	sb.WriteString("[capture]\n")
	fmt.Fprintf(&sb, "color = %s\n", annotation.FormatColor(c.Capture.Color))
	fmt.Fprintf(&sb, "stroke_width = %g\n", c.Capture.StrokeWidth)
	fmt.Fprintf(&sb, "text_size = %g\n", c.Capture.TextSize)
	fmt.Fprintf(&sb, "dedup_px = %g\n", c.Capture.DedupPx)
	fmt.Fprintf(&sb, "erase_radius = %d\n", c.Capture.EraseRadius)
	fmt.Fprintf(&sb, "history_limit = %d\n", c.Capture.HistoryLimit)
	sb.WriteString("\n")

	sb.WriteString("[export]\n")
	fmt.Fprintf(&sb, "compress = %v\n", c.Export.Compress)
	fmt.Fprintf(&sb, "verify = %v\n", c.Export.Verify)
	fmt.Fprintf(&sb, "busy_policy = %s\n", c.Export.BusyPolicy)
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "export = %v\n", c.Notify.Export)
	fmt.Fprintf(&sb, "failure = %v\n", c.Notify.Failure)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)

	return sb.String()
}
