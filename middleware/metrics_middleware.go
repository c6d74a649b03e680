package middleware

import (
	"context"
	"time"

	"hqlrpc/client"
	"hqlrpc/codec"
	"hqlrpc/observability"
)

// Metrics records every call in the prometheus call counters.
func Metrics() client.Middleware {
	return func(next client.HandlerFunc) client.HandlerFunc {
		return func(ctx context.Context, call *client.Call) (codec.Value, error) {
			start := time.Now()
			v, err := next(ctx, call)
			outcome := "ok"
			if err != nil {
				outcome = client.KindOf(err).String()
			}
			observability.RecordCall(call.Method.Name, outcome, time.Since(start))
			return v, err
		}
	}
}
