package httpproxy

import (
	"bufio"
	"net"
)

// bufferedConn lets the relay drain bytes the front-end's bufio.Reader
// already pulled off the wire (a pipelined request, early TLS
// ClientHello bytes) before it starts reading conn directly, while
// still forwarding Write/Close/CloseWrite to the underlying
// connection.
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
