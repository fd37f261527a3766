package hdf5

import (
	"errors"
	"fmt"
	"os"
)

// CopyFile copies the file at src to dst, replacing dst. The copy keeps the
// permission bits of src.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := copyContents(out, in, info.Size()); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}
