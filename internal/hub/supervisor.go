package hub

import (
	"context"
	"net"
)

// Handler runs one session to completion given the accepted connection.
// It owns conn for the lifetime of the call and must close it before
// returning.
type Handler func(ctx context.Context, conn net.Conn)

// Supervisor owns a listener's accept loop. It spawns one goroutine per
// accepted connection and stops accepting once the listener is closed;
// canceling ctx does not close the listener itself (the caller does
// that, typically via context.AfterFunc). It does not wait for
// in-flight sessions to finish; each session observes ctx at its next
// suspension point.
type Supervisor struct {
	Listener net.Listener
	Handle   Handler
}

// Serve runs the accept loop until Accept returns an error. If ctx has
// been canceled by then, Serve returns nil; otherwise it returns that
// error.
func (s *Supervisor) Serve(ctx context.Context) error {
	for {
		c, err := s.Listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.Handle(ctx, c)
	}
}
