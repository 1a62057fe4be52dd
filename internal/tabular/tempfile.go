package tabular

import (
	"io"
	"os"

	"placement-predictor/internal/common/errors"
)

// WithTempFile spools src into a temporary file under dir and calls fn with
// its path. The file is removed on every exit path, including panics in fn.
func WithTempFile(dir string, src io.Reader, fn func(path string) error) (err error) {
	if dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return errors.NewIOError("create upload directory", mkErr)
		}
	}
	f, createErr := os.CreateTemp(dir, "upload-*.csv")
	if createErr != nil {
		return errors.NewIOError("create temporary upload", createErr)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, copyErr := io.Copy(f, src); copyErr != nil {
		f.Close()
		return errors.NewIOError("spool upload", copyErr)
	}
	if closeErr := f.Close(); closeErr != nil {
		return errors.NewIOError("close temporary upload", closeErr)
	}
	return fn(path)
}
