// Package addr provides the destination address model shared by every
// front-end, dialer, and ACL matcher in this module.
//
// A Destination is an immutable tagged value: either an IP literal (v4 or
// v6) plus port, or a domain name plus port. It parses and renders the
// textual "host:port" form; SOCKS5 ATYP 0x01/0x03/0x04 address records
// are encoded and decoded by internal/socks5.
package addr
