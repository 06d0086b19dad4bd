// Package relay implements the bidirectional byte copy that joins a
// client connection and a dialed remote connection once a session's
// handshake has completed.
//
// Each direction is copied independently; a direction that sees EOF
// issues a half-close (CloseWrite) on the other side instead of closing
// the whole connection, so a still-open direction can keep draining. An
// idle watchdog closes both sides if neither direction has moved a byte
// within the configured timeout.
package relay
