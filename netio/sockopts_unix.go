//go:build !windows

package netio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// ReuseAddrControl is a net.ListenConfig.Control callback that sets
// SO_REUSEADDR on the not-yet-bound socket, matching the
// setsockopt(SOL_SOCKET, SO_REUSEADDR) call NetworkEndPointWin32.cpp
// makes before binding a MulticastReceive socket.
func ReuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
