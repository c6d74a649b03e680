package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"hqlrpc/client"
	"hqlrpc/codec"
)

var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimit creates a token-bucket limiter shared by every call through it.
// A call over the limit fails before anything is written.
func RateLimit(r float64, burst int) client.Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next client.HandlerFunc) client.HandlerFunc {
		return func(ctx context.Context, call *client.Call) (codec.Value, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, call)
		}
	}
}
