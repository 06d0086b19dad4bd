// Package dialer provides the outbound dialing primitives used by the
// hub's Dial convergence point: a direct TCP dialer and the upstream
// SOCKS5 client that performs the RFC 1928/1929 CONNECT handshake
// through the configured remote server.
package dialer
