// Package socksproxy implements the SOCKS5 front-end: RFC 1928 greeting
// and CONNECT request handling, optional RFC 1929 username/password
// authentication, resolution through a hub.Converger, and entry into
// the duplex relay once a remote stream is connected.
package socksproxy
