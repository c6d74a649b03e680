package middleware

import (
	"context"
	"time"

	"hqlrpc/client"
	"hqlrpc/codec"
)

// Timeout bounds each call. The deadline reaches the connection through the
// context, so a call that runs out of time fails with a transport error and
// its connection is not reused.
func Timeout(timeout time.Duration) client.Middleware {
	return func(next client.HandlerFunc) client.HandlerFunc {
		return func(ctx context.Context, call *client.Call) (codec.Value, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, call)
		}
	}
}
