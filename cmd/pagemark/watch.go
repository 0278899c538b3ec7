package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/export"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/session"
)

type watchCmd struct {
	file     string
	marks    string
	output   string
	debounce time.Duration
	*root
	fs *flag.FlagSet

	// applied, when set, receives every finished save.
	applied func(*export.Output, error)
}

func (w *watchCmd) FlagSet() *flag.FlagSet {
	return w.fs
}

func parseWatchCmd(args []string, r *root) (*watchCmd, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	w := &watchCmd{root: r, fs: fs}
	fs.Usage = usageFunc(w)
	fs.StringVar(&w.file, "file", "", "source document")
	fs.StringVar(&w.marks, "marks", "", "sidecar file to watch (defaults to <file>.marks.yaml)")
	fs.StringVar(&w.output, "output", "", "annotated document to write (defaults to <file><suffix>)")
	fs.DurationVar(&w.debounce, "debounce", 250*time.Millisecond, "quiet period after a change before applying")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if w.file == "" {
		return nil, &UsageError{of: w}
	}
	return w, nil
}

func (w *watchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return w.watch(ctx)
}

// watch applies the sidecar now and after every change until ctx is done.
// Each change supersedes a save still in flight, per the busy policy.
func (w *watchCmd) watch(ctx context.Context) error {
	out, err := w.target(w.file, w.output)
	if err != nil {
		return err
	}
	sidecar := filepath.Clean(sidecarPath(w.file, w.marks))
	exp, err := w.exporter(filepath.Dir(out))
	if err != nil {
		return err
	}
	s, err := w.openSession(ctx, w.file, sidecar, w.config.Scale, session.WithExporter(exp), session.WithContext(ctx))
	if err != nil {
		return err
	}
	defer s.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watch the directory: sidecars are replaced by rename.
	if err := watcher.Add(filepath.Dir(sidecar)); err != nil {
		return err
	}

	name := filepath.Base(out)
	save := func() {
		h := s.Save(ctx, name)
		go w.report(h)
	}
	w.logger.Info("watching", "marks", sidecar, "output", out)
	save()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			idle, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return exp.Idle(idle)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != sidecar {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			snap, err := annotation.ReadFile(sidecar)
			if err != nil {
				// Usually a half-written file; the next write triggers again.
				w.logger.Warn("reload marks", "path", sidecar, "err", err)
				continue
			}
			s.Import(snap)
			save()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch", "err", err)
		}
	}
}

func (w *watchCmd) report(h *export.Handle) {
	out, err := h.Wait(context.Background())
	switch {
	case errors.Is(err, reconstruct.ErrCancelled):
		w.logger.Debug("save superseded", "save", h.ID.String())
	case err != nil:
		w.logger.Error("apply failed", "err", err)
	default:
		w.logger.Info("applied", "path", out.Path, "pages", out.PageCount, "orphans", len(out.Orphans))
	}
	if w.applied != nil {
		w.applied(out, err)
	}
}
