// Package acl loads and evaluates the hub's access-control list: a text
// file of bypass/proxy/reject rules that decides, per destination,
// whether a session should be dialed directly, forwarded through the
// upstream SOCKS5 server, or refused outright.
//
// Matching uses tagged pattern classes (exact domain, domain suffix, CIDR,
// anchored regex), with exact/suffix checked before regex so the slow
// path only runs when no cheap domain pattern matched; CIDR ranges are
// checked last, and only for IP-literal destinations.
package acl
