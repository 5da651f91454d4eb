package transport

import (
	"net"
	"sync"
)

// registry tracks in-flight transfer connections so shutdown can cut them
// loose instead of waiting out their read deadlines.
type registry struct {
	conns sync.Map // map[string]net.Conn (key: remoteAddr)
}

func (r *registry) add(conn net.Conn) {
	r.conns.Store(conn.RemoteAddr().String(), conn)
}

func (r *registry) remove(conn net.Conn) {
	r.conns.Delete(conn.RemoteAddr().String())
}

func (r *registry) closeAll() {
	r.conns.Range(func(_, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			conn.Close()
		}
		return true
	})
}
