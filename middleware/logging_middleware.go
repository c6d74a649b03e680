package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hqlrpc/client"
	"hqlrpc/codec"
)

// Logging writes one event per call. Declared exceptions are part of a
// method's contract and log at Warn; every other failure logs at Error.
func Logging(logger zerolog.Logger) client.Middleware {
	return func(next client.HandlerFunc) client.HandlerFunc {
		return func(ctx context.Context, call *client.Call) (codec.Value, error) {
			start := time.Now()
			v, err := next(ctx, call)

			event := logger.Debug()
			kind := client.KindOf(err)
			switch kind {
			case client.KindNone:
			case client.KindDeclared:
				event = logger.Warn().Err(err)
			default:
				event = logger.Error().Err(err)
			}
			event.
				Str("method", call.Method.Name).
				Int32("seq", call.SeqID).
				Bool("oneway", call.Method.Oneway).
				Dur("duration", time.Since(start)).
				Str("error_kind", kind.String()).
				Msg("rpc_call")
			return v, err
		}
	}
}
