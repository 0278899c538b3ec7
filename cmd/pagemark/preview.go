package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/pagemark/internal/clipboard"
	"github.com/example/pagemark/internal/render"
)

type previewCmd struct {
	file        string
	marks       string
	output      string
	page        int
	scale       float64
	toClipboard bool
	shadow      bool
	*root
	fs *flag.FlagSet
}

func (p *previewCmd) FlagSet() *flag.FlagSet {
	return p.fs
}

func parsePreviewCmd(args []string, r *root) (*previewCmd, error) {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	p := &previewCmd{root: r, fs: fs}
	fs.Usage = usageFunc(p)
	fs.StringVar(&p.file, "file", "", "document to render")
	fs.StringVar(&p.marks, "marks", "", "sidecar file (defaults to <file>.marks.yaml)")
	fs.StringVar(&p.output, "output", "", "PNG file to write (defaults to <file>-p<page>.png)")
	fs.IntVar(&p.page, "page", 1, "page to render, starting at 1")
	fs.Float64Var(&p.scale, "scale", r.config.Scale, "render scale in pixels per point")
	fs.BoolVar(&p.toClipboard, "to-clipboard", false, "copy the image to the clipboard instead of writing a file")
	fs.BoolVar(&p.toClipboard, "to-clip", false, "copy the image to the clipboard (alias)")
	fs.BoolVar(&p.shadow, "shadow", false, "place the page on a backdrop with a drop shadow")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if p.file == "" {
		return nil, &UsageError{of: p}
	}
	if p.toClipboard && p.output != "" {
		return nil, fmt.Errorf("-output cannot be combined with -to-clipboard")
	}
	return p, nil
}

func (p *previewCmd) Run() error {
	s, err := p.openSession(context.Background(), p.file, sidecarPath(p.file, p.marks), p.scale)
	if err != nil {
		return err
	}
	defer s.Close()
	sf, err := s.Surface(p.page)
	if err != nil {
		return err
	}
	img := sf.Image()
	if p.shadow {
		img = render.Sheet(img, render.DefaultSheetOptions())
	}

	if p.toClipboard {
		if err := clipboard.WriteImage(img); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		detail := fmt.Sprintf("page %d of %s", p.page, filepath.Base(p.file))
		p.notifier.Copied(detail)
		fmt.Fprintf(p.stdout, "copied %s\n", detail)
		return nil
	}

	out := p.output
	if out == "" {
		out = fmt.Sprintf("%s-p%d.png", strings.TrimSuffix(p.file, filepath.Ext(p.file)), p.page)
	}
	if err := writePNG(out, img); err != nil {
		return err
	}
	fmt.Fprintf(p.stdout, "wrote %s (%dx%d)\n", out, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
