package enclave

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFileAtomic writes data to path so that readers observe either the
// old content or the new content, never a partial write: the data goes to
// a temp file in the target directory, is fsynced, renamed into place, and
// the parent directory is fsynced so the rename itself is durable.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "enclave: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "enclave: write temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "enclave: chmod temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "enclave: fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "enclave: close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "enclave: rename into place")
	}

	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrap(err, "enclave: open parent dir")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.Wrap(err, "enclave: fsync parent dir")
	}
	return nil
}
