//go:build !windows

package open

import "os"

// NewSafeFile creates an empty file accessible only by the current user.
//
// If the file already exists, it is truncated.
func NewSafeFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_RDWR, privateMode)
	if err != nil {
		return nil, err
	}
	return rewind(f)
}
