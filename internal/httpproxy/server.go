package httpproxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/connectlab/sockshub/internal/addr"
	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/relay"
	"github.com/rs/zerolog"
)

// maxHeaderBlock bounds how many header bytes a client may send before
// the first CRLFCRLF.
const maxHeaderBlock = 8 * 1024

var errHeaderTooLarge = errors.New("header block exceeds maximum size")

// headerLimitReader caps the number of bytes readable from r until
// release is called. bufio.Reader.fill refills from its source as lines
// are consumed, so a plain bufio.NewReaderSize does not by itself bound
// the total header block a multi-line request can spend before the
// first CRLFCRLF; this does.
type headerLimitReader struct {
	r io.Reader
	n int64
}

func (h *headerLimitReader) Read(p []byte) (int, error) {
	if h.n <= 0 {
		return 0, errHeaderTooLarge
	}
	if int64(len(p)) > h.n {
		p = p[:h.n]
	}
	n, err := h.r.Read(p)
	h.n -= int64(n)
	return n, err
}

// release lifts the cap once the header block has been read, so the
// same reader can keep serving the relay phase unbounded.
func (h *headerLimitReader) release() {
	h.n = math.MaxInt64
}

// Server serves the HTTP CONNECT / plain-HTTP forward proxy front-end.
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
		_ = c.SetReadDeadline(time.Now().Add(s.NegotiationTimeout))
	}

	hlr := &headerLimitReader{r: c, n: maxHeaderBlock}
	br := bufio.NewReaderSize(hlr, maxHeaderBlock)
	bw := bufio.NewWriter(c)

	req, err := http.ReadRequest(br)
	if err != nil {
		log.Debug().Err(err).Msg("malformed request")
		_ = writeBadRequest(bw)
		return
	}
	hlr.release()

	if strings.EqualFold(req.Method, http.MethodConnect) {
		s.handleConnect(ctx, log, c, br, bw, req)
		return
	}
	s.handleTunnel(ctx, log, c, br, bw, req)
}

func (s *Server) handleConnect(ctx context.Context, log zerolog.Logger, c net.Conn, br *bufio.Reader, bw *bufio.Writer, req *http.Request) {
	if req.URL == nil || req.URL.Host == "" {
		_ = writeBadRequest(bw)
		return
	}

	if s.ListenCreds != nil {
		if !s.checkProxyAuth(req) {
			log.Warn().Msg("proxy authentication failed")
			_ = writeProxyAuthRequired(bw)
			return
		}
	}

	dst, err := addr.ParseHostPort(req.URL.Host)
	if err != nil {
		_ = writeBadRequest(bw)
		return
	}

	remote, policy, err := s.Converger.Dial(ctx, dst)
	if err != nil {
		log.Info().Err(err).Str("dest", dst.String()).Str("policy", policy.String()).Msg("dial failed")
		_ = writeBadGateway(bw)
		return
	}
	defer remote.Close()

	if err := writeConnectionEstablished(bw); err != nil {
		return
	}

	if s.NegotiationTimeout > 0 {
		_ = c.SetReadDeadline(time.Time{})
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

func (s *Server) handleTunnel(ctx context.Context, log zerolog.Logger, c net.Conn, br *bufio.Reader, bw *bufio.Writer, req *http.Request) {
	if req.URL == nil || req.URL.Host == "" {
		_ = writeBadRequest(bw)
		return
	}

	host := req.URL.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "80")
	}

	dst, err := addr.ParseHostPort(host)
	if err != nil {
		_ = writeBadRequest(bw)
		return
	}

	remote, policy, err := s.Converger.Dial(ctx, dst)
	if err != nil {
		log.Info().Err(err).Str("dest", dst.String()).Str("policy", policy.String()).Msg("dial failed")
		_ = writeBadGateway(bw)
		return
	}
	defer remote.Close()

	if err := writeRewrittenRequest(remote, req, host); err != nil {
		log.Info().Err(err).Msg("failed writing rewritten request upstream")
		return
	}

	if s.NegotiationTimeout > 0 {
		_ = c.SetReadDeadline(time.Time{})
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

// writeRewrittenRequest re-serializes req in origin-form (path+query
// only, normalized Host header) and writes it to w. The client's
// remaining buffered bytes (body, pipelined requests) are left for the
// relay to stream through unchanged.
func writeRewrittenRequest(w net.Conn, req *http.Request, host string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s %s %s\r\n", req.Method, req.URL.RequestURI(), req.Proto); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "Host: %s\r\n", host); err != nil {
		return err
	}
	if err := req.Header.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Server) checkProxyAuth(req *http.Request) bool {
	v := req.Header.Get("Proxy-Authorization")
	const prefix = "Basic "
	if !strings.HasPrefix(v, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(v[len(prefix):])
	if err != nil {
		return false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	return s.ListenCreds.Equal(hub.Credentials{Username: user, Password: pass})
}
