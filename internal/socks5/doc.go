// Package socks5 implements the RFC 1928/1929 wire primitives shared by
// the upstream client (internal/dialer) and the SOCKS5 front-end
// (internal/socksproxy): the greeting/method-selection exchange, the
// username/password subnegotiation, and the CONNECT request/reply frames.
//
// It is a thin shared layer so negotiation and framing logic is written
// once instead of duplicated between the client and server sides. The
// actual octet-level encoding is delegated to github.com/txthinking/socks5's
// NegotiationRequest/NegotiationReply/UserPassNegotiationRequest/
// UserPassNegotiationReply/Request/Reply types; this package only adapts
// those to internal/addr.Destination and to the granular error types the
// upstream client needs (UpstreamAuthUnavailable/UpstreamAuthFailed/
// UpstreamConnectFailed), which the library's constructors already
// expose at the field level (NewNegotiationReplyFrom(...).Method,
// NewReplyFrom(...).Rep, ...).
package socks5
