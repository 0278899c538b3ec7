package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/example/pagemark/internal/clipboard"
	"github.com/example/pagemark/internal/export"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/session"
)

const progressEvery = 200 * time.Millisecond

type applyCmd struct {
	file     string
	marks    string
	output   string
	quiet    bool
	copyPath bool
	*root
	fs *flag.FlagSet
}

func (a *applyCmd) FlagSet() *flag.FlagSet {
	return a.fs
}

func parseApplyCmd(args []string, r *root) (*applyCmd, error) {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	a := &applyCmd{root: r, fs: fs}
	fs.Usage = usageFunc(a)
	fs.StringVar(&a.file, "file", "", "source document")
	fs.StringVar(&a.marks, "marks", "", "sidecar file (defaults to <file>.marks.yaml)")
	fs.StringVar(&a.output, "output", "", "annotated document to write (defaults to <file><suffix>)")
	fs.BoolVar(&a.quiet, "q", false, "do not print progress")
	fs.BoolVar(&a.copyPath, "copy-path", false, "copy the path of the written document to the clipboard")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if a.file == "" {
		return nil, &UsageError{of: a}
	}
	return a, nil
}

func (a *applyCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return a.apply(ctx)
}

func (a *applyCmd) apply(ctx context.Context) error {
	out, err := a.target(a.file, a.output)
	if err != nil {
		return err
	}
	exp, err := a.exporter(filepath.Dir(out))
	if err != nil {
		return err
	}
	s, err := a.openSession(ctx, a.file, sidecarPath(a.file, a.marks), a.config.Scale,
		session.WithExporter(exp),
		session.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := a.await(ctx, s.Save(ctx, filepath.Base(out)))
	if errors.Is(err, reconstruct.ErrCancelled) {
		return fmt.Errorf("apply interrupted: %s left unchanged", out)
	}
	if err != nil {
		return err
	}
	for _, o := range res.Orphans {
		fmt.Fprintf(a.stderr, "warning: %v\n", o)
	}
	fmt.Fprintf(a.stdout, "wrote %s (%d pages)\n", res.Path, res.PageCount)
	if a.copyPath {
		if err := clipboard.WriteText(res.Path); err != nil {
			fmt.Fprintf(a.stderr, "warning: copy path to clipboard: %v\n", err)
			return nil
		}
		a.notifier.Copied(filepath.Base(res.Path))
		fmt.Fprintf(a.stdout, "copied %s\n", res.Path)
	}
	return nil
}

// target resolves the output path and refuses to overwrite the source.
func (r *root) target(src, output string) (string, error) {
	out := r.outputPath(src, output)
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return "", err
	}
	if absSrc == absOut {
		return "", fmt.Errorf("output %s would overwrite the source document", out)
	}
	return out, nil
}

// await prints progress until h finishes.
func (a *applyCmd) await(ctx context.Context, h *export.Handle) (*export.Output, error) {
	tick := time.NewTicker(progressEvery)
	defer tick.Stop()
	for {
		select {
		case <-h.Done():
			if !a.quiet {
				fmt.Fprintf(a.stderr, "\rapplying %3.0f%%\n", h.Progress())
			}
			return h.Result()
		case <-ctx.Done():
			// The save shares ctx and stops on its own; wait for it to clean up.
			<-h.Done()
			return h.Result()
		case <-tick.C:
			if !a.quiet {
				fmt.Fprintf(a.stderr, "\rapplying %3.0f%%", h.Progress())
			}
		}
	}
}
