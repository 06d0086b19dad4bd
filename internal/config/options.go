package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/logging"
)

// Result is everything Load produces: the startup configuration and the
// logging level to run at. The ACL file named by Config.ACLPath is
// compiled separately by LoadACL.
type Result struct {
	Config hub.Config
	Level  logging.Level
}

// Load parses args (typically os.Args[1:]) into a Result. It accepts
// either the flag-based shape (--source-type/--listen-addr/--server-addr)
// or the URL-based shape (--listen-proxy-role/--remote-server). If either
// URL flag is set, the URL-based shape is used and the flag-based
// address/credential flags are ignored.
func Load(args []string) (*Result, error) {
	fs := pflag.NewFlagSet("socks-hub", pflag.ContinueOnError)

	sourceType := fs.String("source-type", "", "Front-end protocol: http or socks5")
	listenAddr := fs.String("listen-addr", "", "Listener address, e.g. 127.0.0.1:8080")
	serverAddr := fs.String("server-addr", "", "Upstream SOCKS5 server address, e.g. 127.0.0.1:1080")
	username := fs.StringP("username", "u", "", "Listener Basic/SOCKS5 username")
	password := fs.StringP("password", "p", "", "Listener Basic/SOCKS5 password")
	s5Username := fs.String("s5-username", "", "Upstream SOCKS5 username")
	s5Password := fs.String("s5-password", "", "Upstream SOCKS5 password")
	aclFile := fs.StringP("acl-file", "a", "", "Path to an ACL rules file")
	verbosity := fs.StringP("verbosity", "v", "error", "Verbosity: off|error|warn|info|debug|trace")

	listenRoleURL := fs.String("listen-proxy-role", "", "Listener as a URL: http://[user:pass@]host:port or socks5://[user:pass@]host:port")
	remoteServerURL := fs.String("remote-server", "", "Upstream as a URL: socks5://[user:pass@]host:port")

	dialTimeout := fs.Duration("dial-timeout", 10*time.Second, "Timeout for the direct/upstream TCP connect")
	negotiationTimeout := fs.Duration("negotiation-timeout", 10*time.Second, "Timeout for each handshake round-trip")
	idleTimeout := fs.Duration("idle-timeout", 10*time.Minute, "Relay idle watchdog duration (0 disables it)")

	if err := fs.Parse(args); err != nil {
		return nil, wrap(err)
	}

	level, err := logging.ParseLevel(*verbosity)
	if err != nil {
		return nil, wrap(err)
	}

	cfg := hub.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		IdleTimeout:        *idleTimeout,
		KeepAlive:          net.KeepAliveConfig{Enable: true, Idle: 45 * time.Second, Interval: 45 * time.Second, Count: 3},
		ACLPath:            *aclFile,
	}

	if *listenRoleURL != "" || *remoteServerURL != "" {
		if err := applyURLShape(&cfg, *listenRoleURL, *remoteServerURL); err != nil {
			return nil, err
		}
	} else {
		if err := applyFlagShape(&cfg, *sourceType, *listenAddr, *serverAddr, *username, *password, *s5Username, *s5Password); err != nil {
			return nil, err
		}
	}

	return &Result{Config: cfg, Level: level}, nil
}

func applyFlagShape(cfg *hub.Config, sourceType, listenAddr, serverAddr, username, password, s5Username, s5Password string) error {
	switch strings.ToLower(sourceType) {
	case "http":
		cfg.Role = hub.RoleHTTP
	case "socks5":
		cfg.Role = hub.RoleSOCKS5
	default:
		return wrap(fmt.Errorf("invalid --source-type %q: want http or socks5", sourceType))
	}

	if listenAddr == "" {
		return wrap(fmt.Errorf("--listen-addr is required"))
	}
	cfg.ListenAddr = listenAddr

	if serverAddr == "" {
		return wrap(fmt.Errorf("--server-addr is required"))
	}
	cfg.UpstreamAddr = serverAddr

	if username != "" {
		cfg.ListenCreds = &hub.Credentials{Username: username, Password: password}
	}
	if s5Username != "" {
		cfg.UpstreamCreds = &hub.Credentials{Username: s5Username, Password: s5Password}
	}

	return nil
}
