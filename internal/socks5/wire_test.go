package socks5

import (
	"net"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/connectlab/sockshub/internal/addr"
)

func TestGreetingAndConnectRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		auth Auth
	}{
		{name: "no_auth"},
		{name: "user_pass", auth: Auth{Username: "user", Password: "pass"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			dst, err := addr.ParseHostPort("93.184.216.34:443")
			if err != nil {
				t.Fatal(err)
			}

			g := errgroup.Group{}
			g.Go(func() error {
				methods, err := ReadGreeting(serverConn)
				if err != nil {
					return err
				}
				method := MethodNoAuth
				if tt.auth.Username != "" {
					method = MethodUserPass
				}
				if !containsMethod(methods, method) {
					return WriteMethodSelection(serverConn, MethodNoneAcceptable)
				}
				if err := WriteMethodSelection(serverConn, method); err != nil {
					return err
				}
				if method == MethodUserPass {
					user, pass, err := ReadUserPassRequest(serverConn)
					if err != nil {
						return err
					}
					ok := user == tt.auth.Username && pass == tt.auth.Password
					if err := WriteUserPassStatus(serverConn, ok); err != nil {
						return err
					}
					if !ok {
						return nil
					}
				}
				cmd, got, err := ReadRequest(serverConn)
				if err != nil {
					return err
				}
				if cmd != CmdConnect {
					t.Errorf("cmd = 0x%02x, want CmdConnect", cmd)
				}
				if !got.Equal(dst) {
					t.Errorf("server saw dst %v, want %v", got, dst)
				}
				bnd := addr.NewIP(net.IPv4(127, 0, 0, 1), 12345)
				return WriteReply(serverConn, RepSuccess, bnd)
			})

			if err := WriteGreeting(clientConn, tt.auth); err != nil {
				t.Fatal(err)
			}
			method, err := ReadMethodSelection(clientConn)
			if err != nil {
				t.Fatal(err)
			}
			if method == MethodNoneAcceptable {
				t.Fatal("server rejected all methods")
			}
			if method == MethodUserPass {
				if err := WriteUserPassRequest(clientConn, tt.auth); err != nil {
					t.Fatal(err)
				}
				ok, err := ReadUserPassStatus(clientConn)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("auth rejected")
				}
			}
			if err := WriteRequest(clientConn, CmdConnect, dst); err != nil {
				t.Fatal(err)
			}
			rep, bnd, err := ReadReply(clientConn)
			if err != nil {
				t.Fatal(err)
			}
			if rep != RepSuccess {
				t.Fatalf("rep = 0x%02x, want RepSuccess", rep)
			}
			if bnd.Port() != 12345 {
				t.Fatalf("bnd port = %d, want 12345", bnd.Port())
			}

			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestUserPassRejectsOversizedCredentials(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	err := WriteUserPassRequest(clientConn, Auth{Username: string(long), Password: "p"})
	if err == nil {
		t.Fatal("expected error for oversized username")
	}
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
