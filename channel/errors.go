package channel

import "github.com/joeycumines/go-netreactor/nerr"

// errClosed is returned (and used to fail pending promises) for any
// operation attempted on a channel that has already closed, per spec.md
// §4.E's close protocol and §7's ClosedChannel kind.
var errClosed = nerr.New(nerr.KindClosedChannel, "channel: closed")

func errIllegalState(op string) error {
	return nerr.New(nerr.KindIllegalState, "channel: illegal state for "+op)
}

func unresolvedAddrErr(hostport string, cause error) error {
	return nerr.Wrap(nerr.KindUnresolvedAddress, "channel: unresolved address "+hostport, cause)
}
