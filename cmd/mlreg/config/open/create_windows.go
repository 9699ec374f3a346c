//go:build windows

package open

import (
	"os"

	"github.com/hectane/go-acl"
)

// NewSafeFile creates an empty file accessible only by the current user.
//
// If the file already exists, it is truncated.
// On windows, the permission (ACL) can be applied only after creation.
func NewSafeFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_RDWR, privateMode)
	if err != nil {
		return nil, err
	}
	if err := acl.Chmod(path, privateMode); err != nil {
		f.Close()
		return nil, err
	}
	return rewind(f)
}
