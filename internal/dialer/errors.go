package dialer

import "fmt"

// UpstreamAuthUnavailable means the upstream SOCKS5 server selected a
// method this client never offered, or returned 0xFF (no acceptable
// methods).
type UpstreamAuthUnavailable struct {
	Method byte
}

func (e *UpstreamAuthUnavailable) Error() string {
	return fmt.Sprintf("upstream socks5: auth method unavailable (selected 0x%02x)", e.Method)
}

// UpstreamAuthFailed means RFC 1929 subnegotiation completed but the
// upstream reported a non-zero STATUS.
type UpstreamAuthFailed struct{}

func (e *UpstreamAuthFailed) Error() string {
	return "upstream socks5: username/password authentication rejected"
}

// UpstreamConnectFailed carries the REP byte the upstream returned for a
// CONNECT request that did not succeed, so the front-end that receives
// this error can map it onto its own wire reply.
type UpstreamConnectFailed struct {
	Rep byte
}

func (e *UpstreamConnectFailed) Error() string {
	return fmt.Sprintf("upstream socks5: connect failed (REP=0x%02x)", e.Rep)
}

// UpstreamTimeout means a handshake round-trip with the upstream did not
// complete within the configured negotiation deadline.
type UpstreamTimeout struct{}

func (e *UpstreamTimeout) Error() string { return "upstream socks5: handshake timed out" }
