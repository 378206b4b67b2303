//go:build linux

package transport

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// classifyErrno extracts the underlying syscall errno from a network error,
// when the platform makes one available, for the chain.Abort payload
// spec.md §4.C asks the read loop to carry ("send Abort with the errno").
// golang.org/x/sys is the teacher's own indirect dependency for syscall
// constants; this is the one place the core needs raw errno classification.
func classifyErrno(err error) (string, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return unix.Errno(errno).Error(), true
	}
	return "", false
}
