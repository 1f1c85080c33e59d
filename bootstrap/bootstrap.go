package bootstrap

import (
	"github.com/joeycumines/go-netreactor/channel"
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/logging"
	"github.com/joeycumines/go-netreactor/pipeline"
	"github.com/joeycumines/go-netreactor/reactor"
)

// Bootstrap is the client-side connection factory spec.md §4.G sketches:
// it builds a channel, installs the initializer, resolves the target
// address, registers the channel with the group's next reactor, and drives
// connect — failing the returned future on the first error, and closing the
// channel when the connect step itself fails.
type Bootstrap struct {
	group *reactor.Group
	opts  *options
}

// New constructs a Bootstrap drawing reactors from group.
func New(group *reactor.Group, opts ...Option) *Bootstrap {
	return &Bootstrap{group: group, opts: resolveOptions(opts)}
}

// Connect resolves hostport, builds a channel, registers and connects it.
// The returned Channel is usable immediately (writes queue until active);
// the returned Future completes when connect finishes (or fails).
func (b *Bootstrap) Connect(hostport string) (channel.Channel, future.Future[struct{}]) {
	ch := channel.NewNonBlockingClientChannel(b.opts.channelConfig)

	if b.opts.limiter != nil {
		if _, ok := b.opts.limiter.Allow(hostport); !ok {
			return ch, future.Failed[struct{}](ErrRateLimited)
		}
	}

	if b.opts.initializer != nil {
		init := b.opts.initializer
		if _, err := ch.Pipeline().AddLast("bootstrap-init", pipeline.NewInitializer(init), nil); err != nil {
			logging.Get().Err().Err(err).Log("bootstrap: failed to install initializer")
			return ch, future.Failed[struct{}](err)
		}
	}

	remote, err := b.opts.resolver(hostport)
	if err != nil {
		return ch, future.Failed[struct{}](err)
	}

	loop := b.group.Next()

	result := future.New[struct{}](loop.AsExecutor())
	registerFuture := ch.Register(loop)
	registerFuture.AddListener(func(f future.Future[struct{}]) {
		if f.State() != future.Success {
			_, err := f.Value()
			result.TryFailure(err)
			return
		}
		connectFuture := ch.Connect(remote, nil)
		connectFuture.AddListener(func(cf future.Future[struct{}]) {
			if cf.State() != future.Success {
				_, err := cf.Value()
				result.TryFailure(err)
				ch.Close()
				return
			}
			result.TrySuccess(struct{}{})
		})
	})

	return ch, result
}
