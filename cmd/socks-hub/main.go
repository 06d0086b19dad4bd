package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/connectlab/sockshub/internal/config"
	"github.com/connectlab/sockshub/internal/conn"
	"github.com/connectlab/sockshub/internal/dialer"
	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/httpproxy"
	"github.com/connectlab/sockshub/internal/logging"
	"github.com/connectlab/sockshub/internal/socks5"
	"github.com/connectlab/sockshub/internal/socksproxy"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	result, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}

	list, err := config.LoadACL(result.Config.ACLPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}

	log := logging.New(result.Level)
	cfg := result.Config

	converger := &hub.Converger{
		ACL:    list,
		Direct: &dialer.Direct{DialTimeout: cfg.DialTimeout, KeepAlive: cfg.KeepAlive},
		Upstream: &dialer.Socks5Upstream{
			Addr:               cfg.UpstreamAddr,
			Auth:               upstreamAuth(cfg),
			DialTimeout:        cfg.DialTimeout,
			NegotiationTimeout: cfg.NegotiationTimeout,
			KeepAlive:          cfg.KeepAlive,
		},
	}

	ln, err := conn.ListenTCP("tcp", cfg.ListenAddr, cfg.KeepAlive)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	context.AfterFunc(ctx, func() { _ = ln.Close() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(gctx, cfg.Role, converger, &cfg, log, ln) })

	log.Info().Str("role", cfg.Role.String()).Str("listen", cfg.ListenAddr).Msg("listening")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("fatal error")
		return 1
	}

	log.Info().Msg("shutdown complete")
	return 0
}

func serve(ctx context.Context, role hub.Role, converger *hub.Converger, cfg *hub.Config, log zerolog.Logger, ln net.Listener) error {
	switch role {
	case hub.RoleSOCKS5:
		s := &socksproxy.Server{
			Converger:          converger,
			ListenCreds:        cfg.ListenCreds,
			NegotiationTimeout: cfg.NegotiationTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			Log:                log,
		}
		return s.Serve(ctx, ln)
	default:
		s := &httpproxy.Server{
			Converger:          converger,
			ListenCreds:        cfg.ListenCreds,
			NegotiationTimeout: cfg.NegotiationTimeout,
			IdleTimeout:        cfg.IdleTimeout,
			Log:                log,
		}
		return s.Serve(ctx, ln)
	}
}

func upstreamAuth(cfg hub.Config) socks5.Auth {
	if cfg.UpstreamCreds == nil {
		return socks5.Auth{}
	}
	return socks5.Auth{Username: cfg.UpstreamCreds.Username, Password: cfg.UpstreamCreds.Password}
}

func exitCodeFor(err error) int {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return 2
	}
	return 1
}
