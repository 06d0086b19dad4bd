package socksproxy

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"time"

	"github.com/connectlab/sockshub/internal/addr"
	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/relay"
	"github.com/connectlab/sockshub/internal/socks5"
	"github.com/rs/zerolog"
)

// Server serves the SOCKS5 front-end.
type Server struct {
	Converger          *hub.Converger
	ListenCreds        *hub.Credentials
	NegotiationTimeout time.Duration
	IdleTimeout        time.Duration
	Log                zerolog.Logger
}

// Serve runs the accept loop on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sup := &hub.Supervisor{Listener: ln, Handle: s.handle}
	return sup.Serve(ctx)
}

func (s *Server) handle(ctx context.Context, c net.Conn) {
	defer c.Close()

	log := s.Log.With().Str("remote", c.RemoteAddr().String()).Logger()

	if s.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(s.NegotiationTimeout))
	}

	methods, err := socks5.ReadGreeting(c)
	if err != nil {
		log.Debug().Err(err).Msg("malformed greeting")
		return
	}

	method := s.selectMethod(methods)
	if method == socks5.MethodNoneAcceptable {
		_ = socks5.WriteMethodSelection(c, socks5.MethodNoneAcceptable)
		return
	}
	if err := socks5.WriteMethodSelection(c, method); err != nil {
		return
	}

	if method == socks5.MethodUserPass {
		ok, err := s.authenticate(c)
		if err != nil {
			log.Debug().Err(err).Msg("malformed auth subnegotiation")
			return
		}
		if !ok {
			log.Warn().Msg("client authentication failed")
			_ = socks5.WriteUserPassStatus(c, false)
			return
		}
		if err := socks5.WriteUserPassStatus(c, true); err != nil {
			return
		}
	}

	br := bufio.NewReader(c)
	atyp, err := br.Peek(4)
	if err != nil {
		log.Debug().Err(err).Msg("malformed request")
		return
	}
	if !socks5.IsSupportedATYP(atyp[3]) {
		log.Debug().Uint8("atyp", atyp[3]).Msg("unsupported address type")
		_ = socks5.WriteReply(c, socks5.RepAddrTypeNotSupport, zeroBound())
		return
	}

	cmd, dst, err := socks5.ReadRequest(br)
	if err != nil {
		log.Debug().Err(err).Msg("malformed request")
		return
	}
	if cmd != socks5.CmdConnect {
		_ = socks5.WriteReply(c, socks5.RepCommandNotSupport, zeroBound())
		return
	}

	remote, policy, err := s.Converger.Dial(ctx, dst)
	if err != nil {
		rep := repForError(err)
		log.Info().Err(err).Str("dest", dst.String()).Str("policy", policy.String()).Msg("dial failed")
		_ = socks5.WriteReply(c, rep, zeroBound())
		return
	}
	defer remote.Close()

	if err := socks5.WriteReply(c, socks5.RepSuccess, boundAddr(remote)); err != nil {
		return
	}

	if s.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}

	client := &bufferedConn{r: br, Conn: c}
	if _, err := relay.Relay(ctx, client, remote, s.IdleTimeout); err != nil {
		if ctx.Err() != nil {
			log.Info().Err(&hub.ShuttingDown{}).Str("dest", dst.String()).Msg("relay interrupted")
		} else {
			log.Info().Err(&hub.RelayIoError{Err: err}).Str("dest", dst.String()).Msg("relay error")
		}
	}
}

// selectMethod picks UserPass when listener credentials are configured
// and the client offered it, NoAuth when none are configured and the
// client offered it, else MethodNoneAcceptable.
func (s *Server) selectMethod(offered []byte) byte {
	want := socks5.MethodNoAuth
	if s.ListenCreds != nil {
		want = socks5.MethodUserPass
	}
	if bytes.IndexByte(offered, want) >= 0 {
		return want
	}
	return socks5.MethodNoneAcceptable
}

func (s *Server) authenticate(c net.Conn) (bool, error) {
	user, pass, err := socks5.ReadUserPassRequest(c)
	if err != nil {
		return false, err
	}
	return s.ListenCreds.Equal(hub.Credentials{Username: user, Password: pass}), nil
}

func zeroBound() addr.Destination {
	return addr.NewIP(net.IPv4zero, 0)
}

// boundAddr reports the local side of the dialed remote connection, or
// the zero address if it isn't available (e.g. in tests using
// net.Pipe).
func boundAddr(remote net.Conn) addr.Destination {
	la := remote.LocalAddr()
	if la == nil {
		return zeroBound()
	}
	tcpAddr, ok := la.(*net.TCPAddr)
	if !ok {
		return zeroBound()
	}
	return addr.NewIP(tcpAddr.IP, uint16(tcpAddr.Port))
}
