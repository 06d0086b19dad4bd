package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/connectlab/sockshub/internal/addr"
	"github.com/connectlab/sockshub/internal/socks5"
)

// Socks5Upstream dials outbound connections by performing the RFC
// 1928/1929 CONNECT handshake against a single configured remote SOCKS5
// server. It is the only upstream transport this hub supports (spec:
// one upstream, one protocol).
type Socks5Upstream struct {
	Addr               string
	Auth               socks5.Auth
	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig
}

// Dial implements Dialer.
func (u *Socks5Upstream) Dial(ctx context.Context, dst addr.Destination) (net.Conn, error) {
	nd := net.Dialer{Timeout: u.DialTimeout}
	c, err := nd.DialContext(ctx, "tcp", u.Addr)
	if err != nil {
		return nil, fmt.Errorf("upstream socks5 dial %s: %w", u.Addr, err)
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(u.KeepAlive)
	}

	if u.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(u.NegotiationTimeout))
	}

	if err := u.handshake(c, dst); err != nil {
		_ = c.Close()
		return nil, err
	}

	if u.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}

	return c, nil
}

func (u *Socks5Upstream) handshake(c net.Conn, dst addr.Destination) error {
	if err := socks5.WriteGreeting(c, u.Auth); err != nil {
		return wrapTimeout(err)
	}

	method, err := socks5.ReadMethodSelection(c)
	if err != nil {
		return wrapTimeout(err)
	}

	switch method {
	case socks5.MethodNoAuth:
		// nothing more to negotiate
	case socks5.MethodUserPass:
		if u.Auth.Username == "" {
			return &UpstreamAuthUnavailable{Method: method}
		}
		if err := socks5.WriteUserPassRequest(c, u.Auth); err != nil {
			return wrapTimeout(err)
		}
		ok, err := socks5.ReadUserPassStatus(c)
		if err != nil {
			return wrapTimeout(err)
		}
		if !ok {
			return &UpstreamAuthFailed{}
		}
	default:
		return &UpstreamAuthUnavailable{Method: method}
	}

	if err := socks5.WriteRequest(c, socks5.CmdConnect, dst); err != nil {
		return wrapTimeout(err)
	}

	rep, _, err := socks5.ReadReply(c)
	if err != nil {
		return wrapTimeout(err)
	}
	if rep != socks5.RepSuccess {
		return &UpstreamConnectFailed{Rep: rep}
	}

	return nil
}

func wrapTimeout(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &UpstreamTimeout{}
	}
	return err
}
