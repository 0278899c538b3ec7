package annotation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/pagemark/internal/geometry"
)

// SidecarVersion is written to every sidecar file.
const SidecarVersion = 1

type sidecarFile struct {
	Version int           `yaml:"version"`
	Pages   []sidecarPage `yaml:"pages"`
}

type sidecarPage struct {
	Page  int           `yaml:"page"`
	Marks []sidecarMark `yaml:"marks"`
}

type sidecarMark struct {
	Kind        string       `yaml:"kind"`
	Order       uint64       `yaml:"order"`
	Color       string       `yaml:"color"`
	StrokeWidth float64      `yaml:"stroke_width,omitempty"`
	Points      [][2]float64 `yaml:"points,omitempty,flow"`
	At          *[2]float64  `yaml:"at,omitempty,flow"`
	Text        string       `yaml:"text,omitempty"`
	FontSize    float64      `yaml:"font_size,omitempty"`
	Rect        *[4]float64  `yaml:"rect,omitempty,flow"`
	Shape       string       `yaml:"shape,omitempty"`
	Center      *[2]float64  `yaml:"center,omitempty,flow"`
	Radius      float64      `yaml:"radius,omitempty"`
}

// Encode writes snap as a YAML sidecar document.
func Encode(w io.Writer, snap Snapshot) error {
	f := sidecarFile{Version: SidecarVersion}
	for _, n := range snap.Pages() {
		p := sidecarPage{Page: n}
		for _, a := range snap.Page(n) {
			p.Marks = append(p.Marks, toSidecar(a))
		}
		f.Pages = append(f.Pages, p)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	return enc.Close()
}

// Decode reads a YAML sidecar document. Every mark is validated; page numbers
// are not checked against any document. Orders must be unique. Marks without
// an order are numbered after the highest order in the file, in file order.
func Decode(r io.Reader) (Snapshot, error) {
	var f sidecarFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return NewSnapshot(nil), nil
		}
		return Snapshot{}, fmt.Errorf("decode sidecar: %w", err)
	}
	if f.Version > SidecarVersion {
		return Snapshot{}, fmt.Errorf("decode sidecar: unsupported version %d", f.Version)
	}
	var (
		marks     []Annotation
		unordered []int
		last      uint64
	)
	seen := make(map[uint64]bool)
	for _, p := range f.Pages {
		for i, m := range p.Marks {
			a, err := fromSidecar(p.Page, m)
			if err != nil {
				return Snapshot{}, fmt.Errorf("decode sidecar: page %d mark %d: %w", p.Page, i+1, err)
			}
			switch {
			case a.Order == 0:
				unordered = append(unordered, len(marks))
			case seen[a.Order]:
				return Snapshot{}, fmt.Errorf("decode sidecar: page %d mark %d: order %d used twice", p.Page, i+1, a.Order)
			default:
				seen[a.Order] = true
				last = max(last, a.Order)
			}
			marks = append(marks, a)
		}
	}
	for _, i := range unordered {
		last++
		marks[i].Order = last
	}
	return NewSnapshot(marks), nil
}

// ReadFile loads a sidecar file. A missing file yields an empty snapshot.
func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(nil), nil
		}
		return Snapshot{}, err
	}
	return Decode(bytes.NewReader(data))
}

// WriteFile stores snap at path, replacing any existing file atomically.
func WriteFile(path string, snap Snapshot) (err error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".marks-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()
	if _, err = tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func pair(p geometry.Point) *[2]float64 {
	return &[2]float64{p.X, p.Y}
}

func toSidecar(a Annotation) sidecarMark {
	m := sidecarMark{
		Kind:  a.Kind.String(),
		Order: a.Order,
		Color: FormatColor(a.Color),
	}
	switch a.Kind {
	case KindFreehand:
		m.StrokeWidth = a.StrokeWidth
		for _, p := range a.Points {
			m.Points = append(m.Points, [2]float64{p.X, p.Y})
		}
	case KindText:
		m.At = pair(a.At)
		m.Text = a.Text
		m.FontSize = a.FontSize
	case KindHighlight:
		m.Rect = &[4]float64{a.Rect.X, a.Rect.Y, a.Rect.Width, a.Rect.Height}
	case KindShape:
		m.Shape = a.Shape.String()
		m.StrokeWidth = a.StrokeWidth
		if a.Shape == ShapeCircle {
			m.Center = pair(a.Center)
			m.Radius = a.Radius
		} else {
			m.Rect = &[4]float64{a.Rect.X, a.Rect.Y, a.Rect.Width, a.Rect.Height}
		}
	}
	return m
}

func fromSidecar(page int, m sidecarMark) (Annotation, error) {
	kind, err := ParseKind(m.Kind)
	if err != nil {
		return Annotation{}, err
	}
	a := Annotation{Page: page, Kind: kind, Order: m.Order, Color: DefaultColor}
	if m.Color != "" {
		if a.Color, err = ParseColor(m.Color); err != nil {
			return Annotation{}, err
		}
	}
	a.StrokeWidth = m.StrokeWidth
	for _, p := range m.Points {
		a.Points = append(a.Points, geometry.Point{X: p[0], Y: p[1]})
	}
	if m.At != nil {
		a.At = geometry.Point{X: m.At[0], Y: m.At[1]}
	}
	a.Text = m.Text
	a.FontSize = m.FontSize
	if m.Rect != nil {
		a.Rect = geometry.Rect{X: m.Rect[0], Y: m.Rect[1], Width: m.Rect[2], Height: m.Rect[3]}
	}
	switch m.Shape {
	case "", "rect":
		a.Shape = ShapeRect
	case "circle":
		a.Shape = ShapeCircle
	default:
		return Annotation{}, fmt.Errorf("unknown shape %q", m.Shape)
	}
	if m.Center != nil {
		a.Center = geometry.Point{X: m.Center[0], Y: m.Center[1]}
	}
	a.Radius = m.Radius
	if err := a.Validate(); err != nil {
		return Annotation{}, err
	}
	return a, nil
}
