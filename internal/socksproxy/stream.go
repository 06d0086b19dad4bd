package socksproxy

import (
	"bufio"
	"net"
)

// bufferedConn lets the relay drain bytes the front-end's bufio.Reader
// already pulled off the wire while peeking the request's ATYP byte,
// while still forwarding Write/Close/CloseWrite to the underlying
// connection. Mirrors internal/httpproxy's bufferedConn.
type bufferedConn struct {
	r *bufio.Reader
	net.Conn
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *bufferedConn) CloseWrite() error {
	if cw, ok := b.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return b.Conn.Close()
}
