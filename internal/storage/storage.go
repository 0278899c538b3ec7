// Package storage reads source documents and publishes finished outputs.
// Outputs are written to a temporary file next to their destination and only
// renamed into place once every byte is on disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	instrumentationName = "github.com/example/pagemark/internal/storage"
	chunkSize           = 64 << 10
)

// ErrNotFound is returned by Load for a missing document.
var ErrNotFound = errors.New("document not found")

// Dir stores documents under Root. Relative names are resolved against Root;
// absolute names are used as is. An empty Root means the working directory.
type Dir struct {
	Root string

	// afterChunk runs after each chunk is written. Tests use it to interrupt
	// a commit part way through.
	afterChunk func(written int)
}

// Path resolves name against the root.
func (d *Dir) Path(name string) string {
	if filepath.IsAbs(name) || d.Root == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(d.Root, name)
}

// Load reads a whole document.
func (d *Dir) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return data, nil
}

// Commit writes data to name and returns the final path. The destination is
// replaced atomically; on any failure, including cancellation of ctx, the
// temporary file is removed and the destination is left as it was.
func (d *Dir) Commit(ctx context.Context, name string, data []byte) (path string, err error) {
	path = d.Path(name)
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "commit")
	span.SetAttributes(attribute.String("pagemark.path", path), attribute.Int("pagemark.bytes", len(data)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	// Same directory as the destination so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(written+chunkSize, len(data))
		n, err := tmp.Write(data[written:end])
		written += n
		if err != nil {
			return "", fmt.Errorf("commit %s: %w", path, err)
		}
		if d.afterChunk != nil {
			d.afterChunk(written)
		}
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	if info.Size() != int64(len(data)) {
		return "", fmt.Errorf("commit %s: wrote %d of %d bytes", path, info.Size(), len(data))
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("commit %s: %w", path, err)
	}
	return path, nil
}
