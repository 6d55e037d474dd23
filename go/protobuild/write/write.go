// Package write replaces an output directory with generated files.
package write

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/malonaz/protobuild/go/protobuild/types"
)

// Writer writes generated files.
type Writer struct {
	log *slog.Logger
}

// New returns a new Writer.
func New() *Writer {
	return &Writer{log: slog.Default()}
}

// WithLogger sets this writer's logger.
func (w *Writer) WithLogger(logger *slog.Logger) *Writer {
	w.log = logger
	return w
}

// WriteFiles replaces the content of outDir with files.
// Files are written to a staging directory next to outDir which is then swapped in,
// so a failure leaves the previous content of outDir untouched.
func (w *Writer) WriteFiles(outDir string, files []*types.GeneratedFile) (err error) {
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", outDir, err)
	}
	for _, file := range files {
		if !filepath.IsLocal(filepath.FromSlash(file.Name)) {
			return fmt.Errorf("invalid output name %q", file.Name)
		}
	}

	parent, base := filepath.Dir(outDir), filepath.Base(outDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	staging, err := os.MkdirTemp(parent, "."+base+".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			if removeErr := os.RemoveAll(staging); removeErr != nil {
				w.log.Warn("could not remove staging directory", "path", staging, "error", removeErr)
			}
		}
	}()
	if err := os.Chmod(staging, 0755); err != nil {
		return fmt.Errorf("failed to chmod staging directory: %w", err)
	}

	for _, file := range files {
		if err := writeFile(staging, file); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Name, err)
		}
	}
	if err := w.swap(staging, outDir); err != nil {
		return err
	}
	w.log.Debug("wrote files", "out_dir", outDir, "count", len(files))
	return nil
}

func writeFile(dir string, file *types.GeneratedFile) error {
	outputPath := filepath.Join(dir, filepath.FromSlash(file.Name))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(outputPath, file.Content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// swap moves staging to outDir, restoring the previous outDir if that fails.
func (w *Writer) swap(staging, outDir string) error {
	if _, err := os.Lstat(outDir); os.IsNotExist(err) {
		if err := os.Rename(staging, outDir); err != nil {
			return fmt.Errorf("failed to move staging directory: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", outDir, err)
	}

	backup, err := os.MkdirTemp(filepath.Dir(outDir), "."+filepath.Base(outDir)+".old-")
	if err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	// Rename cannot replace a directory, so the backup path must not exist.
	if err := os.Remove(backup); err != nil {
		return fmt.Errorf("failed to prepare backup directory: %w", err)
	}
	if err := os.Rename(outDir, backup); err != nil {
		return fmt.Errorf("failed to move previous output: %w", err)
	}
	if err := os.Rename(staging, outDir); err != nil {
		if restoreErr := os.Rename(backup, outDir); restoreErr != nil {
			w.log.Error("could not restore previous output", "path", backup, "error", restoreErr)
		}
		return fmt.Errorf("failed to move staging directory: %w", err)
	}
	if err := os.RemoveAll(backup); err != nil {
		w.log.Warn("could not remove previous output", "path", backup, "error", err)
	}
	return nil
}
