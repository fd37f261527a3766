//go:build !linux

package hdf5

import (
	"io"
	"os"
)

func copyContents(dst, src *os.File, _ int64) error {
	_, err := io.Copy(dst, src)
	return err
}
