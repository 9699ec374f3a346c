// Package open opens files which should be readable only by the current user.
package open

import (
	"os"

	"github.com/hectane/go-acl"
)

const privateMode = os.FileMode(0600)

// Private opens an existing file to read and write, tightening its permission to 0600.
func Private(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, privateMode)
	if err != nil {
		return nil, err
	}
	if err := acl.Chmod(path, privateMode); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func rewind(f *os.File) (*os.File, error) {
	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
