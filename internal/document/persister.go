package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vellankikoti/tool-versions/internal/logging"
)

// ErrPersistence is returned when the document cannot be written. It is the
// only error that fails a run.
var ErrPersistence = errors.New("failed to persist version document")

// DocumentMode is the permission of the written document. The site build
// reads it as static data.
const DocumentMode os.FileMode = 0644

// Persister stores and retrieves the version document
type Persister interface {
	// Save replaces the stored document atomically
	Save(ctx context.Context, doc VersionDocument) error

	// Load returns the stored document, or an empty one when nothing is stored
	Load(ctx context.Context) (VersionDocument, error)
}

// FilePersister keeps the document in a single JSON file
type FilePersister struct {
	path string

	// replaced in tests to fail a save at a chosen step
	write  func(f *os.File, data []byte) error
	rename func(oldpath, newpath string) error
}

var _ Persister = (*FilePersister)(nil)

// NewFilePersister creates a persister for the file at path
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{
		path:   path,
		write:  writeAndSync,
		rename: os.Rename,
	}
}

// Path returns the document location
func (p *FilePersister) Path() string {
	return p.path
}

// Save writes doc to a temporary file in the target directory, syncs it and
// renames it over the target. Readers see either the old or the new content.
func (p *FilePersister) Save(ctx context.Context, doc VersionDocument) error {
	logger := logging.FromContext(ctx)

	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %w", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary file: %w", ErrPersistence, err)
	}
	tempPath := tmp.Name()

	if err := p.write(tmp, data); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to write temporary file: %w", ErrPersistence, err)
	}

	if err := p.rename(tempPath, p.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to rename %s: %w", ErrPersistence, tempPath, err)
	}

	logger.V(1).Info("Version document written", "path", p.path, "entries", len(doc), "bytes", len(data))
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(DocumentMode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads the stored document. A missing file yields an empty document;
// content that fails schema validation yields ErrInvalidDocument.
func (p *FilePersister) Load(_ context.Context) (VersionDocument, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VersionDocument{}, nil
		}
		return nil, fmt.Errorf("failed to read version document: %w", err)
	}
	return Decode(data)
}
