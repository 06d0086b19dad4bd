package dialer

import (
	"context"
	"net"

	"github.com/connectlab/sockshub/internal/addr"
)

// Dialer produces a connected remote byte stream for a Destination. The
// two implementations are Direct (plain TCP) and Socks5Upstream (RFC
// 1928 CONNECT through the configured remote server); the hub's Dial
// convergence point picks between them per the ACL's decision.
type Dialer interface {
	Dial(ctx context.Context, dst addr.Destination) (net.Conn, error)
}
