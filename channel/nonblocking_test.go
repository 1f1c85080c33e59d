package channel

import (
	"net"
	"testing"
	"time"

	"github.com/joeycumines/go-netreactor/buffer"
	"github.com/joeycumines/go-netreactor/nerr"
	"github.com/joeycumines/go-netreactor/pipeline"
	"github.com/joeycumines/go-netreactor/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGroup builds a one-Loop group for a test and registers cleanup to
// shut it down.
func newTestGroup(t *testing.T) *reactor.Group {
	t.Helper()
	group, err := reactor.NewGroup(1)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = group.ShutdownGracefully(0, 2*time.Second).Await().Value()
	})
	return group
}

// echoListener starts a plain net listener on loopback that echoes back
// whatever it reads, until the test ends.
func echoListener(t *testing.T) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer func() { _ = conn.Close() }()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if n > 0 {
						if _, werr := conn.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()

	return ln.Addr()
}

// TestNonBlockingChannel_ConnectAndEcho is spec scenario: a client channel
// connects, writes bytes, and observes the echoed reply flow back through
// the pipeline's read path.
func TestNonBlockingChannel_ConnectAndEcho(t *testing.T) {
	group := newTestGroup(t)
	addr := echoListener(t)

	ch := NewNonBlockingClientChannel(nil)
	received := make(chan []byte, 1)
	_, err := ch.Pipeline().AddLast("echo-reader", &pipeline.TypedHandler[*buffer.ByteBuf]{
		AutoRelease: true,
		OnMessage: func(ctx *pipeline.Context, msg *buffer.ByteBuf) {
			received <- append([]byte(nil), msg.Bytes()...)
		},
	}, nil)
	require.NoError(t, err)

	remote, err := ResolveTCPAddr(addr.String())
	require.NoError(t, err)

	_, err = ch.Register(group.Next()).Await().Value()
	require.NoError(t, err)

	_, err = ch.Connect(remote, nil).Await().Value()
	require.NoError(t, err)
	assert.True(t, ch.IsActive())

	_, err = ch.WriteAndFlush([]byte("hello")).Await().Value()
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	_, err = ch.Close().Await().Value()
	require.NoError(t, err)
}

// TestNonBlockingChannel_ConnectTimeout is spec.md §8 scenario 3: a short
// ConnectTimeout against an address that never responds (TEST-NET-3,
// RFC 5737 — reserved for documentation, guaranteed unreachable) fails the
// connect future with KindConnectTimeout once the timeout elapses.
func TestNonBlockingChannel_ConnectTimeout(t *testing.T) {
	group := newTestGroup(t)

	cfg := DefaultConfig()
	cfg.ConnectTimeout = 100 * time.Millisecond
	ch := NewNonBlockingClientChannel(cfg)

	remote := &TCPAddr{IP: net.ParseIP("203.0.113.1"), Port: 80}

	_, err := ch.Register(group.Next()).Await().Value()
	require.NoError(t, err)

	start := time.Now()
	_, err = ch.Connect(remote, nil).Await().Value()
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, nerr.Is(err, nerr.KindConnectTimeout), "got %v", err)
	assert.Less(t, elapsed, 5*time.Second)
	assert.False(t, ch.IsOpen())
}

// TestNonBlockingChannel_CloseDrainsPendingWrites is spec.md §8 scenario 6:
// closing a channel while writes are still queued fails those pending
// write promises rather than leaving them unresolved forever.
func TestNonBlockingChannel_CloseDrainsPendingWrites(t *testing.T) {
	group := newTestGroup(t)
	addr := echoListener(t)

	ch := NewNonBlockingClientChannel(nil)
	remote, err := ResolveTCPAddr(addr.String())
	require.NoError(t, err)

	_, err = ch.Register(group.Next()).Await().Value()
	require.NoError(t, err)
	_, err = ch.Connect(remote, nil).Await().Value()
	require.NoError(t, err)

	writeFuture := ch.Write([]byte("queued"))
	closeFuture := ch.Close()

	_, closeErr := closeFuture.Await().Value()
	require.NoError(t, closeErr)

	_, writeErr := writeFuture.Await().Value()
	// The write is never flushed, and both operations run in submission
	// order on the channel's loop, so close finds it still queued and fails
	// its promise with ClosedChannel.
	assert.True(t, nerr.Is(writeErr, nerr.KindClosedChannel), "got %v", writeErr)
	assert.False(t, ch.IsOpen())
}
