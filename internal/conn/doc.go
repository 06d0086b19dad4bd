// Package conn provides the keepalive-aware TCP listener shared by both
// front-ends.
package conn
