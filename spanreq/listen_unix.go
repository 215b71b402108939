//go:build unix

package spanreq

import (
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

var listenControl = dualStackControl

// dualStackControl lets a restarted server rebind immediately and clears
// IPV6_V6ONLY so an IPv6 socket also takes IPv4-mapped clients.
func dualStackControl(network, _ string, rc syscall.RawConn) error {
	var opErr error
	err := rc.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if opErr == nil && network == "tcp6" {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
		}
	})
	return multierr.Append(err, opErr)
}
