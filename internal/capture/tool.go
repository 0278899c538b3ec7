// Package capture turns pointer input on a rendered page into committed
// annotations. Each page has its own Surface holding the page raster, the
// gesture in progress and the page's undo history.
package capture

import (
	"fmt"
	"image/color"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/geometry"
)

// Tool is the active capture mode.
type Tool int

const (
	ToolSelect Tool = iota
	ToolFreehand
	ToolHighlight
	ToolText
	ToolShapeRect
	ToolShapeCircle
	ToolErase
)

var toolNames = []string{"select", "freehand", "highlight", "text", "rect", "circle", "erase"}

func (t Tool) String() string {
	if t < 0 || int(t) >= len(toolNames) {
		return fmt.Sprintf("tool(%d)", int(t))
	}
	return toolNames[t]
}

// ParseTool resolves a tool by name. "draw" and "pen" are accepted for
// freehand, "shape-rect" and "shape-circle" for the shapes.
func ParseTool(s string) (Tool, error) {
	switch s {
	case "draw", "pen":
		return ToolFreehand, nil
	case "shape-rect":
		return ToolShapeRect, nil
	case "shape-circle":
		return ToolShapeCircle, nil
	}
	for i, n := range toolNames {
		if n == s {
			return Tool(i), nil
		}
	}
	return ToolSelect, fmt.Errorf("unknown tool %q", s)
}

// Tools lists every tool in declaration order.
func Tools() []Tool {
	out := make([]Tool, len(toolNames))
	for i := range out {
		out[i] = Tool(i)
	}
	return out
}

// Action is the phase of a pointer event.
type Action int

const (
	Press Action = iota
	Move
	Release
)

func (a Action) String() string {
	switch a {
	case Press:
		return "press"
	case Move:
		return "move"
	case Release:
		return "release"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// PointerEvent is one pointer sample in viewer pixels, origin top-left.
type PointerEvent struct {
	Action Action
	X, Y   float64
}

func (e PointerEvent) point() geometry.Point { return geometry.Point{X: e.X, Y: e.Y} }

// Style is the drawing style applied to new marks, in viewer units.
type Style struct {
	Color       color.RGBA
	StrokeWidth float64
	TextSize    float64
}

// DefaultStyle mirrors the defaults of the config file.
func DefaultStyle() Style {
	return Style{Color: annotation.DefaultColor, StrokeWidth: 3, TextSize: 16}
}

// Prompter asks the user for the content of a text mark placed at the given
// viewer position. ok is false when the user cancelled.
type Prompter interface {
	Prompt(page int, at geometry.Point) (text string, ok bool)
}

// PromptFunc adapts a function to Prompter.
type PromptFunc func(page int, at geometry.Point) (string, bool)

func (f PromptFunc) Prompt(page int, at geometry.Point) (string, bool) { return f(page, at) }
