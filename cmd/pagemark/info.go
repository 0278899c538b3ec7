package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/example/pagemark/internal/storage"
)

type infoCmd struct {
	file string
	*root
	fs *flag.FlagSet
}

func (c *infoCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseInfoCmd(args []string, r *root) (*infoCmd, error) {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	c := &infoCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.file, "file", "", "document to inspect")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.file == "" && fs.NArg() == 1 {
		c.file = fs.Arg(0)
	}
	if c.file == "" {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *infoCmd) Run() error {
	data, err := new(storage.Dir).Load(context.Background(), c.file)
	if err != nil {
		return err
	}
	doc, err := c.documents().codec.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.file, err)
	}
	fmt.Fprintf(c.stdout, "%s: %d pages, %d bytes\n", c.file, doc.PageCount(), doc.Len())
	for i, size := range doc.Pages() {
		fmt.Fprintf(c.stdout, "page %d: %g x %g pt\n", i+1, size.Width, size.Height)
	}
	return nil
}
