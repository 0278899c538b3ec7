package main

import (
	"flag"
	"fmt"

	"github.com/example/pagemark/internal/annotation"
)

type undoCmd struct {
	file  string
	marks string
	page  int
	*root
	fs *flag.FlagSet
}

func (u *undoCmd) FlagSet() *flag.FlagSet {
	return u.fs
}

func parseUndoCmd(args []string, r *root) (*undoCmd, error) {
	fs := flag.NewFlagSet("undo", flag.ContinueOnError)
	u := &undoCmd{root: r, fs: fs}
	fs.Usage = usageFunc(u)
	fs.StringVar(&u.file, "file", "", "document the marks belong to")
	fs.StringVar(&u.marks, "marks", "", "sidecar file (defaults to <file>.marks.yaml)")
	fs.IntVar(&u.page, "page", 1, "page to undo on, starting at 1")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if u.file == "" && u.marks == "" {
		return nil, &UsageError{of: u}
	}
	return u, nil
}

func (u *undoCmd) Run() error {
	path := sidecarPath(u.file, u.marks)
	snap, err := annotation.ReadFile(path)
	if err != nil {
		return err
	}
	set := annotation.NewSet()
	set.Restore(snap)
	removed, ok := set.RemoveLast(u.page)
	if !ok {
		return fmt.Errorf("no marks on page %d", u.page)
	}
	if err := annotation.WriteFile(path, set.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(u.stdout, "removed %s mark %d from page %d\n", removed.Kind, removed.Order, u.page)
	return nil
}
