// Package config turns command-line flags (or, equivalently, a pair of
// proxy-role/remote-server URLs) into a hub.Config and a compiled ACL,
// the two pieces of startup state every session shares for the rest of
// the process's life.
package config
