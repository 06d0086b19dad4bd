// Package hub holds the pieces shared by both front-ends: the dial
// convergence point that turns a Destination into a remote stream via
// the ACL and the configured dialers, the per-session error kinds used
// to pick a protocol-appropriate reply, and the accept-loop supervisor
// that owns a listener and spawns one task per connection.
package hub
