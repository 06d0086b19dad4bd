package httpproxy

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/connectlab/sockshub/internal/acl"
	"github.com/connectlab/sockshub/internal/addr"
	"github.com/connectlab/sockshub/internal/dialer"
	"github.com/connectlab/sockshub/internal/hub"
	"github.com/connectlab/sockshub/internal/socks5"
	"github.com/connectlab/sockshub/internal/testutil"
	"github.com/rs/zerolog"
)

func testServer(conv *hub.Converger, creds *hub.Credentials) *Server {
	return &Server{
		Converger:          conv,
		ListenCreds:        creds,
		NegotiationTimeout: 2 * time.Second,
		IdleTimeout:        0,
		Log:                zerolog.Nop(),
	}
}

func TestConnectThroughUpstream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dst, err := addr.ParseHostPort("example.com:443")
	if err != nil {
		t.Fatal(err)
	}

	upstreamLn, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		methods, err := socks5.ReadGreeting(c)
		if err != nil || len(methods) == 0 {
			return
		}
		if err := socks5.WriteMethodSelection(c, socks5.MethodNoAuth); err != nil {
			return
		}
		cmd, got, err := socks5.ReadRequest(c)
		if err != nil || cmd != socks5.CmdConnect || !got.Equal(dst) {
			return
		}
		if err := socks5.WriteReply(c, socks5.RepSuccess, addr.NewIP(net.IPv4zero, 0)); err != nil {
			return
		}
		buf := make([]byte, 5)
		io.ReadFull(c, buf)
		c.Write(buf)
	})
	defer wait()

	conv := &hub.Converger{
		ACL:      acl.Empty(),
		Direct:   &dialer.Direct{DialTimeout: 2 * time.Second},
		Upstream: &dialer.Socks5Upstream{Addr: upstreamLn.Addr().String(), DialTimeout: 2 * time.Second, NegotiationTimeout: 2 * time.Second},
	}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 200 Connection Established\r\n" {
		t.Fatalf("status line = %q", line)
	}
	blank, _ := br.ReadString('\n')
	if blank != "\r\n" {
		t.Fatalf("expected blank line, got %q", blank)
	}

	clientSide.Write([]byte("hello"))
	buf := make([]byte, 5)
	if _, err := io.ReadFull(br, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}

	clientSide.Close()
	<-done
}

func TestConnectProxyAuthFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := &hub.Converger{ACL: acl.Empty(), Direct: &dialer.Direct{}, Upstream: &dialer.Direct{}}
	creds := &hub.Credentials{Username: "a", Password: "b"}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, creds)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	// Proxy-Authorization: Basic base64("wrong") — deliberately malformed
	// credentials, matching the spec's literal scenario.
	clientSide.Write([]byte("CONNECT x:1 HTTP/1.1\r\nProxy-Authorization: Basic d3Jvbmc=\r\n\r\n"))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 407 Proxy Authentication Required\r\n" {
		t.Fatalf("status line = %q", line)
	}

	clientSide.Close()
	<-done
}

func TestConnectACLReject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	l, err := acl.Load("[reject]\n.ads.example\nfinal = proxy\n")
	if err != nil {
		t.Fatal(err)
	}

	contacted := false
	conv := &hub.Converger{
		ACL:    l,
		Direct: &dialer.Direct{},
		Upstream: &recordingDialer{onDial: func() { contacted = true }},
	}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte("CONNECT tracker.ads.example:443 HTTP/1.1\r\n\r\n"))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 502 Bad Gateway\r\n" {
		t.Fatalf("status line = %q", line)
	}
	if contacted {
		t.Fatal("upstream must not be contacted for a rejected destination")
	}

	clientSide.Close()
	<-done
}

type recordingDialer struct {
	onDial func()
}

func (d *recordingDialer) Dial(ctx context.Context, dst addr.Destination) (net.Conn, error) {
	d.onDial()
	return nil, io.ErrClosedPipe
}

func TestMalformedRequestLineIsBadRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := &hub.Converger{ACL: acl.Empty(), Direct: &dialer.Direct{}, Upstream: &dialer.Direct{}}
	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte("not a valid request line at all\r\n\r\n"))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 400 Bad Request\r\n" {
		t.Fatalf("status line = %q", line)
	}

	clientSide.Close()
	<-done
}

// headerOfSize builds a CONNECT request whose header block (request
// line through the terminating CRLFCRLF, inclusive) is exactly want
// bytes, using a single padding header to make up the remainder.
func headerOfSize(want int) []byte {
	const reqLine = "CONNECT x:1 HTTP/1.1\r\n"
	const headerPrefix = "X-Pad: "
	const tail = "\r\n\r\n"
	padLen := want - len(reqLine) - len(headerPrefix) - len(tail)
	pad := make([]byte, padLen)
	for i := range pad {
		pad[i] = 'a'
	}
	buf := make([]byte, 0, want)
	buf = append(buf, reqLine...)
	buf = append(buf, headerPrefix...)
	buf = append(buf, pad...)
	buf = append(buf, tail...)
	return buf
}

func TestHeaderBlockAtCapIsAccepted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := &hub.Converger{ACL: acl.Empty(), Direct: &dialer.Direct{}, Upstream: &recordingDialer{onDial: func() {}}}
	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write(headerOfSize(maxHeaderBlock))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 502 Bad Gateway\r\n" {
		t.Fatalf("status line = %q, want a parsed request to reach the dialer", line)
	}

	clientSide.Close()
	<-done
}

func TestHeaderBlockOverCapIsBadRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := &hub.Converger{ACL: acl.Empty(), Direct: &dialer.Direct{}, Upstream: &dialer.Direct{}}
	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	go clientSide.Write(headerOfSize(maxHeaderBlock + 1))

	br := bufio.NewReader(clientSide)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "HTTP/1.1 400 Bad Request\r\n" {
		t.Fatalf("status line = %q, want 400 for a header block one byte over the cap", line)
	}

	clientSide.Close()
	<-done
}

func TestPlainHTTPTunnelRewritesToOriginForm(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	upstreamLn, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		br := bufio.NewReader(c)
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		if line != "GET /path?q=1 HTTP/1.1\r\n" {
			c.Write([]byte("FAIL " + line))
			return
		}
		for {
			h, err := br.ReadString('\n')
			if err != nil || h == "\r\n" {
				break
			}
		}
		c.Write([]byte("OK"))
	})
	defer wait()

	conv := &hub.Converger{
		ACL:      acl.Empty(),
		Direct:   &dialer.Direct{DialTimeout: 2 * time.Second},
		Upstream: &dialer.Direct{DialTimeout: 2 * time.Second},
	}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte("GET http://" + upstreamLn.Addr().String() + "/path?q=1 HTTP/1.1\r\nHost: ignored\r\n\r\n"))

	buf := make([]byte, 2)
	if _, err := io.ReadFull(clientSide, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "OK" {
		t.Fatalf("got %q", buf)
	}

	clientSide.Close()
	<-done
}
