package conn

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP opens network/addr and wraps it so every accepted
// *net.TCPConn picks up keepAlive.
func ListenTCP(network, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}

	return &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAlive}, nil
}

// KeepAliveListener tags each accepted connection with KeepAliveConfig.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

func (l *KeepAliveListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(l.KeepAliveConfig)
	}
	return c, nil
}
