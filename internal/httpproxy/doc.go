// Package httpproxy implements the HTTP front-end: a forward proxy that
// accepts either a CONNECT tunnel request or a regular HTTP request
// carrying an absolute-URI target, resolves the destination through a
// hub.Converger, and bridges the client to the resulting stream with
// the duplex relay.
package httpproxy
