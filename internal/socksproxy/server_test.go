package socksproxy

import (
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
		Log:                zerolog.Nop(),
	}
}

func TestSocks5ConnectWithUpstreamAuth(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dst, err := addr.ParseHostPort("127.0.0.1:80")
	if err != nil {
		t.Fatal(err)
	}

	// The hub's side of the upstream connection is what the success
	// reply reports as BND.
	hubSide := make(chan *net.TCPAddr, 1)

	upstreamLn, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		hubSide <- c.RemoteAddr().(*net.TCPAddr)
		methods, err := socks5.ReadGreeting(c)
		if err != nil {
			return
		}
		if idx := indexByte(methods, socks5.MethodUserPass); idx < 0 {
			return
		}
		if err := socks5.WriteMethodSelection(c, socks5.MethodUserPass); err != nil {
			return
		}
		user, pass, err := socks5.ReadUserPassRequest(c)
		if err != nil {
			return
		}
		ok := user == "u" && pass == "p"
		if err := socks5.WriteUserPassStatus(c, ok); err != nil || !ok {
			return
		}
		cmd, got, err := socks5.ReadRequest(c)
		if err != nil || cmd != socks5.CmdConnect || !got.Equal(dst) {
			return
		}
		_ = socks5.WriteReply(c, socks5.RepSuccess, addr.NewIP(net.IPv4zero, 0))
	})
	defer wait()

	conv := &hub.Converger{
		ACL:    acl.Empty(),
		Direct: &dialer.Direct{DialTimeout: 2 * time.Second},
		Upstream: &dialer.Socks5Upstream{
			Addr:               upstreamLn.Addr().String(),
			Auth:               socks5.Auth{Username: "u", Password: "p"},
			DialTimeout:        2 * time.Second,
			NegotiationTimeout: 2 * time.Second,
		},
	}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte{0x05, 0x01, 0x00})
	buf := make([]byte, 2)
	if _, err := io.ReadFull(clientSide, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x05 || buf[1] != 0x00 {
		t.Fatalf("method selection = % x, want 05 00", buf)
	}

	clientSide.Write([]byte{0x05, 0x01, 0x00, 0x01, 0x7f, 0x00, 0x00, 0x01, 0x00, 0x50})
	reply := make([]byte, 10)
	if _, err := io.ReadFull(clientSide, reply); err != nil {
		t.Fatal(err)
	}
	local := <-hubSide
	want := []byte{0x05, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, byte(local.Port >> 8), byte(local.Port)}
	copy(want[4:8], local.IP.To4())
	for i := range want {
		if reply[i] != want[i] {
			t.Fatalf("reply = % x, want % x", reply, want)
		}
	}

	clientSide.Close()
	<-done
}

func indexByte(b []byte, v byte) int {
	for i, x := range b {
		if x == v {
			return i
		}
	}
	return -1
}

func TestSocks5ACLBypassDirect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	echoLn := testutil.StartEchoTCPServer(t, ctx)
	defer echoLn.Close()

	host, port, err := net.SplitHostPort(echoLn.Addr().String())
	if err != nil {
		t.Fatal(err)
	}

	l, err := acl.Load("[bypass]\n" + host + "/32\nfinal = proxy\n")
	if err != nil {
		t.Fatal(err)
	}

	conv := &hub.Converger{
		ACL:      l,
		Direct:   &dialer.Direct{DialTimeout: 2 * time.Second},
		Upstream: &recordingDialer{},
	}

	clientSide, serverSide := net.Pipe()
	s := testServer(conv, nil)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte{0x05, 0x01, 0x00})
	sel := make([]byte, 2)
	io.ReadFull(clientSide, sel)

	ip := net.ParseIP(host).To4()
	portNum := mustAtoi(t, port)
	req := []byte{0x05, 0x01, 0x00, 0x01, ip[0], ip[1], ip[2], ip[3], byte(portNum >> 8), byte(portNum)}
	clientSide.Write(req)

	reply := make([]byte, 10)
	if _, err := io.ReadFull(clientSide, reply); err != nil {
		t.Fatal(err)
	}
	if reply[1] != socks5.RepSuccess {
		t.Fatalf("REP = 0x%02x, want success", reply[1])
	}

	testutil.AssertEcho(t, clientSide, clientSide, []byte("ping"))

	clientSide.Close()
	<-done
}

type recordingDialer struct{}

func (d *recordingDialer) Dial(ctx context.Context, dst addr.Destination) (net.Conn, error) {
	return nil, io.ErrClosedPipe
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("bad port %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func TestSocks5CommandNotSupported(t *testing.T) {
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

	clientSide.Write([]byte{0x05, 0x01, 0x00})
	sel := make([]byte, 2)
	io.ReadFull(clientSide, sel)

	clientSide.Write([]byte{0x05, 0x02, 0x00, 0x01, 127, 0, 0, 1, 0, 80})
	reply := make([]byte, 10)
	if _, err := io.ReadFull(clientSide, reply); err != nil {
		t.Fatal(err)
	}
	if reply[1] != socks5.RepCommandNotSupport {
		t.Fatalf("REP = 0x%02x, want 0x07", reply[1])
	}

	clientSide.Close()
	<-done
}

func TestSocks5UnsupportedAddrType(t *testing.T) {
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

	clientSide.Write([]byte{0x05, 0x01, 0x00})
	sel := make([]byte, 2)
	io.ReadFull(clientSide, sel)

	// ATYP 0x02 is unassigned by RFC 1928.
	clientSide.Write([]byte{0x05, 0x01, 0x00, 0x02})
	reply := make([]byte, 10)
	if _, err := io.ReadFull(clientSide, reply); err != nil {
		t.Fatal(err)
	}
	if reply[1] != socks5.RepAddrTypeNotSupport {
		t.Fatalf("REP = 0x%02x, want 0x08", reply[1])
	}

	clientSide.Close()
	<-done
}

func TestSocks5NoAcceptableMethods(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := &hub.Converger{ACL: acl.Empty(), Direct: &dialer.Direct{}, Upstream: &dialer.Direct{}}
	creds := &hub.Credentials{Username: "u", Password: "p"}
	clientSide, serverSide := net.Pipe()
	s := testServer(conv, creds)

	done := make(chan struct{})
	go func() {
		s.handle(ctx, serverSide)
		close(done)
	}()

	clientSide.Write([]byte{0x05, 0x01, 0x00}) // offers only NoAuth; server wants UserPass
	sel := make([]byte, 2)
	if _, err := io.ReadFull(clientSide, sel); err != nil {
		t.Fatal(err)
	}
	if sel[1] != socks5.MethodNoneAcceptable {
		t.Fatalf("method = 0x%02x, want 0xff", sel[1])
	}

	clientSide.Close()
	<-done
}
