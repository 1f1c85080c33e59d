package bootstrap

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-netreactor/channel"
	"github.com/joeycumines/go-netreactor/pipeline"
)

// options holds Bootstrap configuration resolved at construction, following
// the same closure-over-private-struct shape as reactor.LoopOption.
type options struct {
	channelConfig *channel.Config
	initializer   func(p *pipeline.Pipeline)
	resolver      func(hostport string) (*channel.TCPAddr, error)
	limiter       *catrate.Limiter
}

// Option configures a Bootstrap.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithChannelConfig overrides the Config each constructed channel uses.
func WithChannelConfig(cfg *channel.Config) Option {
	return optionFunc(func(o *options) { o.channelConfig = cfg })
}

// WithInitializer sets the pipeline-populating callback installed as a
// pipeline.Initializer on every channel Connect constructs, per spec.md
// §4.G's "adds the user's init handler to the pipeline" step.
func WithInitializer(init func(p *pipeline.Pipeline)) Option {
	return optionFunc(func(o *options) { o.initializer = init })
}

// WithResolver overrides the default net.LookupIP-backed resolver.
func WithResolver(resolver func(hostport string) (*channel.TCPAddr, error)) Option {
	return optionFunc(func(o *options) { o.resolver = resolver })
}

// WithRateLimit installs a per-remote-address connect-attempt limiter
// (github.com/joeycumines/go-catrate), so a caller that retries against an
// unreachable peer cannot hot-loop OS-level connect attempts. rates maps a
// sliding window to the maximum connect attempts allowed within it, e.g.
// {time.Second: 1, time.Minute: 20}.
func WithRateLimit(rates map[time.Duration]int) Option {
	return optionFunc(func(o *options) { o.limiter = catrate.NewLimiter(rates) })
}

func resolveOptions(opts []Option) *options {
	cfg := &options{
		resolver: channel.ResolveTCPAddr,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	return cfg
}
