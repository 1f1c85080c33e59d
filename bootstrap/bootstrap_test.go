package bootstrap

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/joeycumines/go-netreactor/buffer"
	"github.com/joeycumines/go-netreactor/channel"
	"github.com/joeycumines/go-netreactor/pipeline"
	"github.com/joeycumines/go-netreactor/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGroup(t *testing.T) *reactor.Group {
	t.Helper()
	group, err := reactor.NewGroup(1)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = group.ShutdownGracefully(0, 2*time.Second).Await().Value()
	})
	return group
}

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

// TestBootstrap_ConnectInstallsInitializerAndConnects exercises the full
// client bootstrap sequence: build channel, install initializer, resolve,
// register, connect.
func TestBootstrap_ConnectInstallsInitializerAndConnects(t *testing.T) {
	group := newTestGroup(t)
	addr := echoListener(t)

	received := make(chan []byte, 1)
	bs := New(group, WithInitializer(func(p *pipeline.Pipeline) {
		_, err := p.AddLast("reader", &pipeline.TypedHandler[*buffer.ByteBuf]{
			AutoRelease: true,
			OnMessage: func(ctx *pipeline.Context, msg *buffer.ByteBuf) {
				received <- append([]byte(nil), msg.Bytes()...)
			},
		}, nil)
		require.NoError(t, err)
	}))

	ch, connectFuture := bs.Connect(addr.String())
	_, err := connectFuture.Await().Value()
	require.NoError(t, err)
	assert.True(t, ch.IsActive())

	_, err = ch.WriteAndFlush([]byte("ping")).Await().Value()
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "ping", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	_, _ = ch.Close().Await().Value()
}

// TestBootstrap_ResolverFailurePropagates checks an erroring resolver fails
// the returned Future without ever registering the channel.
func TestBootstrap_ResolverFailurePropagates(t *testing.T) {
	group := newTestGroup(t)
	resolveErr := errors.New("boom: no such host")
	bs := New(group, WithResolver(func(hostport string) (*channel.TCPAddr, error) {
		return nil, resolveErr
	}))

	_, connectFuture := bs.Connect("irrelevant:1234")
	_, err := connectFuture.Await().Value()
	assert.ErrorIs(t, err, resolveErr)
}

// TestBootstrap_RateLimitRejectsSecondAttempt exercises WithRateLimit: a
// one-per-window limit on a given remote address rejects a second connect
// attempt within the window with ErrRateLimited, failing fast without
// touching the network.
func TestBootstrap_RateLimitRejectsSecondAttempt(t *testing.T) {
	group := newTestGroup(t)
	addr := echoListener(t)

	bs := New(group, WithRateLimit(map[time.Duration]int{time.Minute: 1}))

	ch1, f1 := bs.Connect(addr.String())
	_, err := f1.Await().Value()
	require.NoError(t, err)
	defer func() { _, _ = ch1.Close().Await().Value() }()

	_, f2 := bs.Connect(addr.String())
	_, err = f2.Await().Value()
	assert.ErrorIs(t, err, ErrRateLimited)
}
