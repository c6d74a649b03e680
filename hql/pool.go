package hql

import (
	"context"
	"errors"
	"sync"

	"hqlrpc/client"
	"hqlrpc/transport"
)

// Pool shares a bounded set of connections between goroutines. Each
// connection has its own Client, so sequence ids stay per connection, and Do
// lends it to one caller at a time.
type Pool struct {
	conns *transport.Pool
	opts  []client.Option

	mu      sync.Mutex
	clients map[*transport.PoolConn]*Client
}

// NewPool creates a pool of at most size connections opened with dial.
func NewPool(size int, dial func(context.Context) (transport.Transport, error), opts ...client.Option) *Pool {
	return &Pool{
		conns:   transport.NewPool(size, dial),
		opts:    opts,
		clients: make(map[*transport.PoolConn]*Client),
	}
}

// Do runs fn with exclusive use of one client. After a call fails with a
// transport or malformed-wire error the connection's stream position is
// unknown, so it is closed instead of being reused. Errors fn produces itself
// leave the connection alone.
func (p *Pool) Do(ctx context.Context, fn func(*Client) error) error {
	pc, err := p.conns.Get(ctx)
	if err != nil {
		return err
	}

	err = fn(p.clientFor(pc))
	var ce *client.Error
	if errors.As(err, &ce) && (ce.Kind == client.KindTransport || ce.Kind == client.KindMalformedWire) {
		pc.MarkUnusable()
		p.mu.Lock()
		delete(p.clients, pc)
		p.mu.Unlock()
	}
	p.conns.Put(pc)
	return err
}

func (p *Pool) clientFor(pc *transport.PoolConn) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[pc]
	if !ok {
		// The concrete transport, so New can see FrameReader and Deadliner.
		c = NewClient(pc.Transport, p.opts...)
		p.clients[pc] = c
	}
	return c
}

// Open reports how many connections the pool holds.
func (p *Pool) Open() int {
	return p.conns.Open()
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.clients = make(map[*transport.PoolConn]*Client)
	p.mu.Unlock()
	return p.conns.Close()
}
