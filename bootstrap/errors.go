package bootstrap

import "errors"

// ErrRateLimited is returned by Connect when the configured rate limiter
// has rejected a connect attempt for the given remote address category.
var ErrRateLimited = errors.New("bootstrap: connect attempt rate limited")
