// Package middleware provides client call middleware. Each one wraps a
// client.HandlerFunc and is installed with client.WithMiddleware.
package middleware

import "hqlrpc/client"

// Chain combines several middlewares into one; the first is the outermost.
func Chain(middlewares ...client.Middleware) client.Middleware {
	return func(next client.HandlerFunc) client.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
