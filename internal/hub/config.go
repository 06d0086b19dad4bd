package hub

import (
	"crypto/subtle"
	"net"
	"time"
)

// Role selects which front-end protocol a listener speaks.
type Role int

const (
	RoleHTTP Role = iota
	RoleSOCKS5
)

func (r Role) String() string {
	if r == RoleSOCKS5 {
		return "socks5"
	}
	return "http"
}

// Credentials is a username/password pair, compared in constant time so
// a timing side-channel can't be used to guess either field a byte at
// a time.
type Credentials struct {
	Username string
	Password string
}

// Equal reports whether c and other carry the same username and
// password, without leaking timing information proportional to how
// many leading bytes match.
func (c Credentials) Equal(other Credentials) bool {
	okUser := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username)) == 1
	okPass := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password)) == 1
	return okUser && okPass
}

// Config is the immutable, process-lifetime startup configuration
// produced by flag/URL parsing and handed unchanged to every session.
type Config struct {
	ListenAddr  string
	Role        Role
	ListenCreds *Credentials // nil when the listener requires no auth

	UpstreamAddr  string
	UpstreamCreds *Credentials // nil when the upstream requires no auth

	ACLPath string

	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	IdleTimeout        time.Duration
	KeepAlive          net.KeepAliveConfig
}
