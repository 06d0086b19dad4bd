package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// bufSize is the fixed per-direction copy buffer.
const bufSize = 8 * 1024

// Stream is the capability set the relay needs from each side of a
// session: read, write, and close. A Stream that also implements
// CloseWrite is half-closed when the other stream's read side reaches
// EOF; one that doesn't (e.g. a test net.Pipe) is fully closed instead.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

type closeWriter interface {
	CloseWrite() error
}

// Stats reports the byte counts a completed Relay transferred in each
// direction.
type Stats struct {
	ClientToRemote int64
	RemoteToClient int64
}

// Relay copies bytes between client and remote in both directions until
// both directions have reached EOF (or the relay is otherwise torn
// down), propagating half-close instead of a hard close so one
// direction finishing doesn't cut off the other. It returns once both
// directions are done. If idleTimeout is positive and neither direction
// transfers a byte for that long, both streams are closed.
//
// Relay takes ownership of neither stream's lifetime beyond what it
// needs to do its job: callers are still responsible for eventually
// closing both, but Relay guarantees that on return at least one error
// path has already closed both (no half-open leak on failure).
func Relay(ctx context.Context, client, remote Stream, idleTimeout time.Duration) (Stats, error) {
	var stats Stats
	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	var closeOnce sync.Once
	var torndown atomic.Bool
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = client.Close()
			_ = remote.Close()
		})
	}
	// teardown marks the close as Relay's own deliberate shutdown (idle
	// timeout, caller-cancelled context) rather than a side effect of a
	// copy direction's own I/O error, so the resulting "use of closed
	// connection" error on the other side can be told apart from a
	// genuine mid-transfer failure.
	teardown := func() {
		torndown.Store(true)
		closeBoth()
	}

	// copiesDone is closed once both copy directions have returned, so
	// the watchdog and the cancellation watcher stop waiting after a
	// clean finish instead of holding Relay open until ctx ends.
	copiesDone := make(chan struct{})
	var copiesLeft atomic.Int32
	copiesLeft.Store(2)
	copyFinished := func() {
		if copiesLeft.Add(-1) == 0 {
			close(copiesDone)
		}
	}

	watchdogDone := make(chan struct{})
	if idleTimeout > 0 {
		go func() {
			defer close(watchdogDone)
			ticker := time.NewTicker(idleTimeout / 4)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-copiesDone:
					return
				case <-ticker.C:
					last := time.Unix(0, lastActivity.Load())
					if time.Since(last) >= idleTimeout {
						teardown()
						return
					}
				}
			}
		}()
	} else {
		close(watchdogDone)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer copyFinished()
		n, err := copyDirection(client, remote, &lastActivity)
		stats.ClientToRemote = n
		return err
	})
	g.Go(func() error {
		defer copyFinished()
		n, err := copyDirection(remote, client, &lastActivity)
		stats.RemoteToClient = n
		return err
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-copiesDone:
			return nil
		}
		// gctx is also cancelled when a copy direction reports a
		// genuine error; only mark this a deliberate teardown when the
		// caller's own ctx, not just the errgroup-derived one, is done.
		if ctx.Err() != nil {
			torndown.Store(true)
		}
		closeBoth()
		return nil
	})

	err := g.Wait()
	closeBoth()
	<-watchdogDone

	if isBenignTeardownError(err, torndown.Load()) {
		err = nil
	}

	return stats, err
}

// copyDirection copies from src to dst, refreshing lastActivity on every
// successful read, and half-closing dst's write side once src reaches
// EOF (falling back to a full Close if dst has no CloseWrite).
func copyDirection(src io.Reader, dst io.Writer, lastActivity *atomic.Int64) (int64, error) {
	buf := make([]byte, bufSize)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			lastActivity.Store(time.Now().UnixNano())
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				halfClose(dst)
				return total, nil
			}
			return total, rerr
		}
	}
}

func halfClose(dst io.Writer) {
	if cw, ok := dst.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	if c, ok := dst.(io.Closer); ok {
		_ = c.Close()
	}
}

// isBenignTeardownError reports whether err is the expected side effect
// of Relay closing both streams itself, rather than a genuine transfer
// failure (ECONNRESET, a read/write timeout, ...) that callers need to
// see and log as a relay I/O error. net.ErrClosed is unambiguous on its
// own; io.ErrClosedPipe (net.Pipe, used by tests) only counts when
// Relay's own teardown path is what closed the stream.
func isBenignTeardownError(err error, torndown bool) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return torndown && errors.Is(err, io.ErrClosedPipe)
}
