//go:build windows

package netutil

import (
	"net"
	"syscall"

	"golang.org/x/sys/windows"
)

// BroadcastListenConfig returns a ListenConfig whose sockets can both
// share their port and send to broadcast addresses.
func BroadcastListenConfig() net.ListenConfig {
	return net.ListenConfig{Control: broadcastControl}
}

func broadcastControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if opErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); opErr != nil {
			return
		}
		opErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
