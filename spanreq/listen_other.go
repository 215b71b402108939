//go:build !unix

package spanreq

import "syscall"

var listenControl func(network, address string, rc syscall.RawConn) error
