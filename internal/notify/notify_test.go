package notify

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/pagemark/internal/platform"
)

type sent struct {
	title, body string
	opts        platform.Options
}

func recorder(out *[]sent) SendFunc {
	return func(ctx context.Context, title, body string, opts platform.Options) error {
		*out = append(*out, sent{title, body, opts})
		return nil
	}
}

func TestDisabledByDefault(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences()).WithSender(recorder(&got))
	n.Exported("a.pdf")
	n.Failed(errors.New("boom"))
	require.Empty(t, got)

	var nilNotifier *Notifier
	nilNotifier.Exported("a.pdf")
	nilNotifier.Enable(EventExport, true)
}

func TestExportedAndFailed(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences()).WithSender(recorder(&got))
	n.Enable(EventExport, true)
	n.Enable(EventFailure, true)

	n.Exported("out.pdf")
	n.Failed(errors.New("output has 3 pages, source has 4"))
	n.Failed(nil)

	abs, err := filepath.Abs("out.pdf")
	require.NoError(t, err)
	require.Equal(t, []sent{
		{"pagemark", "Saved " + abs, platform.Options{}},
		{"pagemark", "Export failed: output has 3 pages, source has 4", platform.Options{Critical: true}},
	}, got)
}

func TestLoadPreferencesFromEnv(t *testing.T) {
	t.Setenv("PAGEMARK_NOTIFY_TITLE", "Docs")
	t.Setenv("PAGEMARK_NOTIFY_EXPORT_TEXT", "Wrote %s")
	prefs := LoadPreferences()
	require.Equal(t, "Docs", prefs.Title)
	require.Equal(t, "Wrote %s", prefs.Events[EventExport].Template)
	require.Equal(t, "Export failed: %s", prefs.Events[EventFailure].Template)
}
