package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/geometry"
	"github.com/example/pagemark/internal/session"
)

// drawCmd replays pointer input on one page and records the resulting mark
// in the sidecar.
type drawCmd struct {
	file      string
	marks     string
	png       string
	page      int
	scale     float64
	colorSpec string
	width     float64
	textSize  float64
	tool      capture.Tool
	coords    []float64
	text      string
	*root
	fs *flag.FlagSet
}

func (d *drawCmd) FlagSet() *flag.FlagSet {
	return d.fs
}

var drawFlagNames = map[string]struct{}{
	"file":      {},
	"marks":     {},
	"png":       {},
	"page":      {},
	"scale":     {},
	"color":     {},
	"width":     {},
	"text-size": {},
}

func parseDrawCmd(args []string, r *root) (*drawCmd, error) {
	fs := flag.NewFlagSet("draw", flag.ContinueOnError)
	d := &drawCmd{root: r, fs: fs}
	fs.Usage = usageFunc(d)
	fs.StringVar(&d.file, "file", "", "document to annotate")
	fs.StringVar(&d.marks, "marks", "", "sidecar file (defaults to <file>.marks.yaml)")
	fs.StringVar(&d.png, "png", "", "also write the page with the new mark as PNG")
	fs.IntVar(&d.page, "page", 1, "page to draw on, starting at 1")
	fs.Float64Var(&d.scale, "scale", r.config.Scale, "render scale the coordinates refer to")
	fs.StringVar(&d.colorSpec, "color", annotation.FormatColor(r.config.Capture.Color), "color name or hex value")
	fs.Float64Var(&d.width, "width", r.config.Capture.StrokeWidth, "stroke width in pixels")
	fs.Float64Var(&d.textSize, "text-size", r.config.Capture.TextSize, "text size in pixels")

	flagArgs, positionals, err := splitDrawArgs(args)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	if d.file == "" || len(positionals) < 1 {
		return nil, &UsageError{of: d}
	}
	d.tool, err = capture.ParseTool(positionals[0])
	if err != nil {
		return nil, err
	}
	remaining := positionals[1:]
	switch d.tool {
	case capture.ToolFreehand:
		d.coords, err = expectPoints(remaining, 2, d.tool)
	case capture.ToolErase:
		d.coords, err = expectPoints(remaining, 1, d.tool)
	case capture.ToolHighlight, capture.ToolShapeRect, capture.ToolShapeCircle:
		d.coords, err = expectFloats(remaining, 4, d.tool)
	case capture.ToolText:
		if len(remaining) < 3 {
			return nil, fmt.Errorf("text requires x y and content")
		}
		d.coords, err = expectFloats(remaining[:2], 2, d.tool)
		d.text = strings.Join(remaining[2:], " ")
		if err == nil && strings.TrimSpace(d.text) == "" {
			err = fmt.Errorf("text content cannot be empty")
		}
	default:
		return nil, fmt.Errorf("tool %q cannot draw", d.tool)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func expectFloats(args []string, n int, tool capture.Tool) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires %d coordinates", tool, n)
	}
	return parseFloats(args)
}

// expectPoints accepts x y pairs, requiring at least the given number.
func expectPoints(args []string, least int, tool capture.Tool) ([]float64, error) {
	if len(args)%2 != 0 || len(args) < 2*least {
		return nil, fmt.Errorf("%s requires at least %d x y pairs", tool, least)
	}
	return parseFloats(args)
}

func parseFloats(args []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, raw := range args {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", raw)
		}
		vals[i] = v
	}
	return vals, nil
}

// events turns the coordinates into the pointer sequence a user would make.
func (d *drawCmd) events() []capture.PointerEvent {
	at := func(a capture.Action, i int) capture.PointerEvent {
		return capture.PointerEvent{Action: a, X: d.coords[i], Y: d.coords[i+1]}
	}
	switch d.tool {
	case capture.ToolText:
		return []capture.PointerEvent{at(capture.Press, 0)}
	case capture.ToolHighlight, capture.ToolShapeRect, capture.ToolShapeCircle:
		return []capture.PointerEvent{at(capture.Press, 0), at(capture.Move, 2), at(capture.Release, 2)}
	}
	evs := []capture.PointerEvent{at(capture.Press, 0)}
	for i := 2; i+1 < len(d.coords); i += 2 {
		evs = append(evs, at(capture.Move, i))
	}
	last := len(d.coords) - 2
	return append(evs, at(capture.Release, last))
}

func (d *drawCmd) Run() error {
	c, err := annotation.ParseColor(d.colorSpec)
	if err != nil {
		return err
	}
	style := capture.Style{Color: c, StrokeWidth: d.width, TextSize: d.textSize}
	sidecar := sidecarPath(d.file, d.marks)
	prompt := capture.PromptFunc(func(int, geometry.Point) (string, bool) { return d.text, true })
	s, err := d.openSession(context.Background(), d.file, sidecar, d.scale,
		session.WithStyle(style),
		session.WithSurfaceOptions(capture.WithPrompter(prompt)),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	before := s.Marks().Len()
	s.SelectTool(d.tool)
	for _, ev := range d.events() {
		if err := s.PointerEvent(d.page, ev); err != nil {
			return err
		}
	}
	s.SelectTool(capture.ToolSelect)

	if d.png != "" {
		if err := d.writePNG(s); err != nil {
			return err
		}
	}

	marks := s.Marks()
	if marks.Len() == before {
		if d.tool != capture.ToolErase {
			fmt.Fprintln(d.stderr, "gesture cancelled: no mark added")
		}
		return nil
	}
	if err := annotation.WriteFile(sidecar, marks); err != nil {
		return err
	}
	page := marks.Page(d.page)
	added := page[len(page)-1]
	fmt.Fprintf(d.stdout, "added %s mark %d on page %d (%s)\n", added.Kind, added.Order, d.page, sidecar)
	return nil
}

func (d *drawCmd) writePNG(s *session.Session) error {
	sf, err := s.Surface(d.page)
	if err != nil {
		return err
	}
	return writePNG(d.png, sf.Image())
}

func splitDrawArgs(args []string) ([]string, []string, error) {
	var flags []string
	var positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		parts := strings.SplitN(name, "=", 2)
		base := strings.ToLower(parts[0])
		if _, ok := drawFlagNames[base]; !ok {
			// Negative coordinates.
			positionals = append(positionals, arg)
			continue
		}
		norm := "-" + base
		if len(parts) == 2 {
			flags = append(flags, norm+"="+parts[1])
			continue
		}
		if i+1 >= len(args) {
			return nil, nil, fmt.Errorf("flag %s requires a value", arg)
		}
		flags = append(flags, norm, args[i+1])
		i++
	}
	return flags, positionals, nil
}
