package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/connectlab/sockshub/internal/addr"
)

// Direct dials a destination directly, resolving domains locally.
type Direct struct {
	DialTimeout time.Duration
	KeepAlive   net.KeepAliveConfig
}

// Dial implements Dialer.
func (d *Direct) Dial(ctx context.Context, dst addr.Destination) (net.Conn, error) {
	hostport, err := dst.HostPort()
	if err != nil {
		return nil, err
	}

	nd := net.Dialer{Timeout: d.DialTimeout}
	c, err := nd.DialContext(ctx, "tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("direct dial %s: %w", hostport, err)
	}

	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(d.KeepAlive)
	}

	return c, nil
}
