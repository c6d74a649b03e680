package transport

import (
	"context"
	"sync"
)

// Pool hands out transports for exclusive use: one borrower at a time per
// transport, which is what a non-multiplexed request/reply client needs.
//
// Pool design: a buffered channel of idle transports is a natural FIFO queue.
// Transports are created lazily, the pool starts empty and grows on demand up
// to max. Borrowers block when all transports are out.
type Pool struct {
	mu      sync.Mutex
	idle    chan *PoolConn
	slots   chan struct{} // one token per live transport
	closed  bool
	factory func(context.Context) (Transport, error)
}

// PoolConn is a borrowed transport.
type PoolConn struct {
	Transport
	unusable bool // set when the stream may be desynchronized
}

// MarkUnusable makes Put close the transport instead of returning it.
func (c *PoolConn) MarkUnusable() {
	c.unusable = true
}

func NewPool(max int, factory func(context.Context) (Transport, error)) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{
		idle:    make(chan *PoolConn, max),
		slots:   make(chan struct{}, max),
		factory: factory,
	}
}

// Get borrows a transport.
// Strategy:
//  1. Take an idle transport if there is one
//  2. Otherwise create one if under the limit
//  3. Otherwise wait for whichever comes first: a returned transport, a
//     freed slot (a discarded transport), or ctx being done
func (p *Pool) Get(ctx context.Context) (*PoolConn, error) {
	select {
	case c, ok := <-p.idle:
		return p.borrowed(c, ok)
	default:
	}

	select {
	case c, ok := <-p.idle:
		return p.borrowed(c, ok)
	case p.slots <- struct{}{}:
		return p.create(ctx)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) borrowed(c *PoolConn, ok bool) (*PoolConn, error) {
	if !ok {
		return nil, ErrPoolClosed
	}
	return c, nil
}

func (p *Pool) create(ctx context.Context) (*PoolConn, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		<-p.slots
		return nil, ErrPoolClosed
	}

	t, err := p.factory(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &PoolConn{Transport: t}, nil
}

// Put returns a borrowed transport. Unusable transports, and any returned
// after Close, are closed and their slot freed.
func (p *Pool) Put(c *PoolConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.unusable || p.closed {
		c.Transport.Close()
		<-p.slots
		return
	}
	// cannot block: idle holds at most as many transports as there are slots
	p.idle <- c
}

// Close closes idle transports now and borrowed ones as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.idle)
	for c := range p.idle {
		c.Transport.Close()
		<-p.slots
	}
	return nil
}

// Open reports how many transports exist, idle or borrowed.
func (p *Pool) Open() int {
	return len(p.slots)
}
