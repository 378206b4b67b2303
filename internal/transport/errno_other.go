//go:build !linux

package transport

import (
	"errors"
	"syscall"
)

// classifyErrno is the non-Linux fallback: syscall.Errno is defined on every
// platform Go supports, just without the extra unix constant names.
func classifyErrno(err error) (string, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error(), true
	}
	return "", false
}
