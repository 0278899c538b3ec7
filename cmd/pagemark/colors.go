package main

import (
	"flag"
	"fmt"

	"github.com/example/pagemark/internal/annotation"
)

type colorsCmd struct {
	*root
	fs *flag.FlagSet
}

func (c *colorsCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseColorsCmd(args []string, r *root) (*colorsCmd, error) {
	fs := flag.NewFlagSet("colors", flag.ContinueOnError)
	cmd := &colorsCmd{root: r, fs: fs}
	fs.Usage = usageFunc(cmd)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: cmd}
	}
	return cmd, nil
}

func (c *colorsCmd) Run() error {
	fmt.Fprintln(c.stdout, "palette colors (* marks the configured color):")
	for idx, entry := range annotation.Palette() {
		marker := " "
		if entry.Color == c.config.Capture.Color {
			marker = "*"
		}
		block := fmt.Sprintf("\x1b[48;2;%d;%d;%dm  \x1b[0m", entry.Color.R, entry.Color.G, entry.Color.B)
		fmt.Fprintf(c.stdout, "%s %2d: %-12s %s %s\n", marker, idx, entry.Name, annotation.FormatColor(entry.Color), block)
	}
	fmt.Fprintln(c.stdout, "any SVG color name or #RRGGBB[AA] value is accepted too")
	return nil
}
