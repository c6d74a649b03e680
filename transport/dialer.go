package transport

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hqlrpc/loadbalance"
	"hqlrpc/observability"
	"hqlrpc/registry"
)

// Dialer opens transports to an HQL endpoint. The address is either fixed
// (Addr) or discovered from Registry under Service and picked by Balancer.
//
// Establishing a connection is the only thing retried anywhere in the client:
// no request bytes exist yet, so a retry cannot duplicate a call.
type Dialer struct {
	Addr string

	Registry    registry.Registry
	Service     string
	Balancer    loadbalance.Balancer
	AffinityKey string

	Timeout  time.Duration // per attempt
	Attempts int           // total attempts, at least 1
	Backoff  Backoff

	// Wrap turns a connection into a transport; Buffered by default.
	Wrap   func(net.Conn) Transport
	Logger zerolog.Logger

	rngOnce sync.Once
	rngMu   sync.Mutex
	rng     *rand.Rand
}

// Dial resolves an address and connects, retrying with backoff. Each attempt
// resolves again, so a dead instance can be replaced by a fresh one from the
// registry.
func (d *Dialer) Dial(ctx context.Context) (Transport, error) {
	attempts := d.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := d.delay(attempt - 1)
			d.Logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying dial")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		addr, err := d.resolve(ctx)
		if err != nil {
			lastErr = err
			d.Logger.Warn().Err(err).Int("attempt", attempt).Str("service", d.Service).Msg("resolve failed")
			continue
		}

		conn, err := d.dialAddr(ctx, addr)
		observability.RecordDial(err == nil)
		if err != nil {
			lastErr = err
			d.Logger.Warn().Err(err).Int("attempt", attempt).Str("addr", addr).Msg("dial failed")
			continue
		}
		d.Logger.Debug().Str("addr", addr).Int("attempt", attempt).Msg("connected")
		return d.wrap(conn), nil
	}
	return nil, fmt.Errorf("transport: dial failed after %d attempts: %w", attempts, lastErr)
}

func (d *Dialer) resolve(ctx context.Context) (string, error) {
	if d.Addr != "" {
		return d.Addr, nil
	}
	if d.Registry == nil {
		return "", fmt.Errorf("%w: neither address nor registry configured", ErrNoInstances)
	}
	instances, err := d.Registry.Discover(ctx, d.Service)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", d.Service, err)
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("%w: service %s", ErrNoInstances, d.Service)
	}
	bal := d.Balancer
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}
	inst, err := bal.Pick(instances, d.AffinityKey)
	if err != nil {
		return "", err
	}
	return inst.Addr, nil
}

func (d *Dialer) dialAddr(ctx context.Context, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	return nd.DialContext(ctx, "tcp", addr)
}

func (d *Dialer) wrap(conn net.Conn) Transport {
	if d.Wrap != nil {
		return d.Wrap(conn)
	}
	return NewBuffered(conn, 0)
}

func (d *Dialer) delay(retry int) time.Duration {
	d.rngOnce.Do(func() {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	})
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.Backoff.Delay(retry, d.rng)
}
