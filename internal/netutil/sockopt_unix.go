//go:build unix

package netutil

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// BroadcastListenConfig returns a ListenConfig whose sockets can both
// share their port and send to broadcast addresses. Linux refuses sends
// to 255.255.255.255 without SO_BROADCAST.
func BroadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{Control: broadcastControl}
}

func broadcastControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
