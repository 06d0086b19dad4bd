package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/connectlab/sockshub/internal/hub"
)

// applyURLShape parses the URL-based CLI form: --listen-proxy-role
// proto://[user[:pass]@]host:port (proto http or socks5) and
// --remote-server socks5://[user[:pass]@]host:port. Both must be
// present together; this hub speaks to exactly one listener and one
// upstream.
func applyURLShape(cfg *hub.Config, listenURL, remoteURL string) error {
	if listenURL == "" || remoteURL == "" {
		return wrap(fmt.Errorf("--listen-proxy-role and --remote-server must both be set"))
	}

	lu, err := url.Parse(listenURL)
	if err != nil {
		return wrap(fmt.Errorf("invalid --listen-proxy-role: %w", err))
	}
	switch strings.ToLower(lu.Scheme) {
	case "http":
		cfg.Role = hub.RoleHTTP
	case "socks5":
		cfg.Role = hub.RoleSOCKS5
	default:
		return wrap(fmt.Errorf("invalid --listen-proxy-role scheme %q: want http or socks5", lu.Scheme))
	}
	if lu.Host == "" {
		return wrap(fmt.Errorf("invalid --listen-proxy-role: missing host"))
	}
	cfg.ListenAddr = lu.Host
	if lu.User != nil {
		user := lu.User.Username()
		pass, _ := lu.User.Password()
		cfg.ListenCreds = &hub.Credentials{Username: user, Password: pass}
	}

	ru, err := url.Parse(remoteURL)
	if err != nil {
		return wrap(fmt.Errorf("invalid --remote-server: %w", err))
	}
	if strings.ToLower(ru.Scheme) != "socks5" {
		return wrap(fmt.Errorf("invalid --remote-server scheme %q: only socks5 is supported as an upstream", ru.Scheme))
	}
	if ru.Host == "" {
		return wrap(fmt.Errorf("invalid --remote-server: missing host"))
	}
	cfg.UpstreamAddr = ru.Host
	if ru.User != nil {
		user := ru.User.Username()
		pass, _ := ru.User.Password()
		cfg.UpstreamCreds = &hub.Credentials{Username: user, Password: pass}
	}

	return nil
}
