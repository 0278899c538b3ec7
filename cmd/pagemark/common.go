package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/codec/pdf"
	"github.com/example/pagemark/internal/export"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/session"
	"github.com/example/pagemark/internal/storage"
)

func (r *root) documents() *backend {
	if r.backend == nil {
		rend := pdf.NewRenderer()
		r.backend = &backend{
			codec:    pdf.New(pdf.WithCompression(r.config.Export.Compress)),
			renderer: rend,
			close:    rend.Close,
		}
	}
	return r.backend
}

func (r *root) closeBackend() {
	if r.backend == nil || r.backend.close == nil {
		return
	}
	if err := r.backend.close(); err != nil {
		r.logger.Warn("close renderer", "err", err)
	}
}

// sidecarPath returns the marks file used for doc when none is given.
func sidecarPath(doc, marks string) string {
	if marks != "" {
		return marks
	}
	return strings.TrimSuffix(doc, filepath.Ext(doc)) + ".marks.yaml"
}

// outputPath names the annotated copy of src.
func (r *root) outputPath(src, output string) string {
	if output != "" {
		return output
	}
	dir := r.config.OutputDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+r.config.Suffix+ext)
}

func (r *root) exporter(dir string) (*export.Controller, error) {
	policy, err := export.ParsePolicy(r.config.Export.BusyPolicy)
	if err != nil {
		return nil, err
	}
	engine := reconstruct.New(r.documents().codec,
		reconstruct.WithLogger(r.logger),
		reconstruct.WithVerify(r.config.Export.Verify),
	)
	return export.New(engine, &storage.Dir{Root: dir},
		export.WithPolicy(policy),
		export.WithLogger(r.logger),
		export.WithNotifier(r.notifier),
	), nil
}

func (r *root) style() capture.Style {
	return capture.Style{
		Color:       r.config.Capture.Color,
		StrokeWidth: r.config.Capture.StrokeWidth,
		TextSize:    r.config.Capture.TextSize,
	}
}

// openSession loads the document at path with the marks in sidecar.
func (r *root) openSession(ctx context.Context, path, sidecar string, scale float64, opts ...session.Option) (*session.Session, error) {
	data, err := new(storage.Dir).Load(ctx, path)
	if err != nil {
		return nil, err
	}
	snap, err := annotation.ReadFile(sidecar)
	if err != nil {
		return nil, err
	}
	b := r.documents()
	opts = append([]session.Option{
		session.WithLogger(r.logger),
		session.WithScale(scale),
		session.WithStyle(r.style()),
		session.WithSurfaceOptions(
			capture.WithDedup(r.config.Capture.DedupPx),
			capture.WithEraseRadius(r.config.Capture.EraseRadius),
			capture.WithHistoryLimit(r.config.Capture.HistoryLimit),
			capture.WithLogger(r.logger),
		),
	}, opts...)
	s, err := session.Load(data, b.codec, b.renderer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if snap.Len() > 0 {
		s.Import(snap)
	}
	return s, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
