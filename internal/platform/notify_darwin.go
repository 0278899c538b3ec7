//go:build darwin

package platform

import (
	"context"
	"fmt"
	"os/exec"
)

// Notify displays a desktop notification using macOS Notification Center.
func Notify(ctx context.Context, title, body string, opts Options) error {
	script := fmt.Sprintf("display notification %q with title %q subtitle %q", body, title, appName)
	if opts.Critical {
		script += ` sound name "Basso"`
	}
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}
