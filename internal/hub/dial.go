package hub

import (
	"context"
	"net"

	"github.com/connectlab/sockshub/internal/acl"
	"github.com/connectlab/sockshub/internal/addr"
	"github.com/connectlab/sockshub/internal/dialer"
)

// Converger is the point where a parsed Destination meets the ACL and
// the two dialers a session might use. Both front-ends call Dial once
// their handshake has produced a Destination; its result (or error)
// drives the protocol-specific reply each sends before entering the
// relay.
type Converger struct {
	ACL      *acl.List
	Direct   dialer.Dialer
	Upstream dialer.Dialer
}

// Dial evaluates the ACL for dst and, on anything but Reject, dials
// through the dialer the decision selects. It returns the resolved
// policy alongside the stream or error so callers can log or map the
// decision without re-evaluating the ACL.
func (c *Converger) Dial(ctx context.Context, dst addr.Destination) (net.Conn, acl.Policy, error) {
	policy := c.ACL.Evaluate(dst)

	switch policy {
	case acl.Reject:
		return nil, policy, &PolicyRejected{}
	case acl.Direct:
		conn, err := c.Direct.Dial(ctx, dst)
		return conn, policy, err
	default:
		conn, err := c.Upstream.Dial(ctx, dst)
		return conn, policy, err
	}
}
