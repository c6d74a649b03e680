package hql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hqlrpc/client"
	"hqlrpc/codec"
	"hqlrpc/loadbalance"
	"hqlrpc/message"
	"hqlrpc/registry"
	"hqlrpc/rpctest"
	"hqlrpc/transport"
)

func startPeer(t *testing.T, framed transport.FramedOptions, reg registry.Registry) *rpctest.Server {
	t.Helper()
	srv := rpctest.NewServer(Service, rpctest.Options{
		Wrap: func(c net.Conn) transport.Transport { return transport.NewFramed(c, framed) },
	})

	var opened atomic.Int64
	srv.Handle("namespace_open", func(_ context.Context, args *codec.Struct) (*codec.Struct, error) {
		name := codec.Field[string](args, "ns").OrElse("")
		if name == "missing" {
			exc := &ClientException{Code: 0x10004, Message: "namespace does not exist"}
			return codec.New(NamespaceOpenResult).Set("e", exc.ToStruct()), nil
		}
		return codec.New(NamespaceOpenResult).Set("success", opened.Add(1)), nil
	})
	srv.Handle("hql_query", func(_ context.Context, args *codec.Struct) (*codec.Struct, error) {
		ns := codec.Field[int64](args, "ns").OrElse(-1)
		cmd := codec.Field[string](args, "command").OrElse("")
		res := &HqlResult{Results: codec.Some([]string{fmt.Sprintf("%d:%s", ns, cmd)})}
		return codec.New(HqlQueryResult).Set("success", res.ToStruct()), nil
	})
	srv.Handle("namespace_close", func(_ context.Context, _ *codec.Struct) (*codec.Struct, error) {
		return nil, &message.ApplicationException{Type: message.ExceptionInternalError, Message: "close failed"}
	})

	if err := srv.Start(context.Background(), reg, "hql"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close(time.Second) })
	return srv
}

func TestPoolOverDiscoveredFramedConnections(t *testing.T) {
	framed := transport.FramedOptions{Compression: transport.CompressionSnappy}
	reg := registry.NewStatic()
	srv := startPeer(t, framed, reg)

	dialer := &transport.Dialer{
		Registry: reg,
		Service:  "hql",
		Balancer: &loadbalance.RoundRobinBalancer{},
		Timeout:  time.Second,
		Attempts: 2,
		Wrap:     func(c net.Conn) transport.Transport { return transport.NewFramed(c, framed) },
	}
	pool := NewPool(2, dialer.Dial, client.WithAccelerated(true))
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- pool.Do(ctx, func(c *Client) error {
				if !c.Core().Accelerated() {
					return errors.New("accelerated codec not selected on a framed connection")
				}
				ns, err := c.NamespaceOpen(ctx, "sys")
				if err != nil {
					return err
				}
				cmd := fmt.Sprintf("SELECT %d", i)
				res, err := c.HqlQuery(ctx, ns, cmd)
				if err != nil {
					return err
				}
				want := fmt.Sprintf("%d:%s", ns, cmd)
				if got := res.Results.OrElse(nil); len(got) != 1 || got[0] != want {
					return fmt.Errorf("results %v, want [%s]", got, want)
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if open := pool.Open(); open < 1 || open > 2 {
		t.Fatalf("pool holds %d connections, want 1..2", open)
	}
	if got := len(srv.Received()); got != 16 {
		t.Fatalf("server saw %d calls, want 16", got)
	}
}

func TestPoolKeepsConnectionAfterDeclaredException(t *testing.T) {
	srv := startPeer(t, transport.FramedOptions{}, nil)
	dialer := &transport.Dialer{
		Addr: srv.Addr(),
		Wrap: func(c net.Conn) transport.Transport { return transport.NewFramed(c, transport.FramedOptions{}) },
	}
	pool := NewPool(1, dialer.Dial)
	defer pool.Close()
	ctx := context.Background()

	err := pool.Do(ctx, func(c *Client) error {
		_, err := c.NamespaceOpen(ctx, "missing")
		return err
	})
	var ce *ClientException
	if !errors.As(err, &ce) || ce.Code != 0x10004 {
		t.Fatalf("expect ClientException, got %v", err)
	}
	if pool.Open() != 1 {
		t.Fatal("declared exception must not discard the connection")
	}

	err = pool.Do(ctx, func(c *Client) error {
		return c.NamespaceClose(ctx, 1)
	})
	var ae *message.ApplicationException
	if client.KindOf(err) != client.KindApplication || !errors.As(err, &ae) || ae.Message != "close failed" {
		t.Fatalf("expect application exception, got %v", err)
	}

	// The connection is still in sequence after both failures.
	err = pool.Do(ctx, func(c *Client) error {
		ns, err := c.NamespaceOpen(ctx, "sys")
		if err != nil {
			return err
		}
		if c.Core().LastSeqID() != 3 {
			return fmt.Errorf("seq %d, want 3", c.Core().LastSeqID())
		}
		_ = ns
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestPoolDiscardsBrokenConnection(t *testing.T) {
	srv := startPeer(t, transport.FramedOptions{}, nil)
	var dials atomic.Int32
	dialer := &transport.Dialer{Addr: srv.Addr()}
	dial := func(ctx context.Context) (transport.Transport, error) {
		dials.Add(1)
		return dialer.Dial(ctx)
	}
	// Buffered client against a framed peer: the reply cannot be parsed.
	pool := NewPool(1, dial)
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := pool.Do(ctx, func(c *Client) error {
		_, err := c.NamespaceOpen(ctx, "sys")
		return err
	})
	if k := client.KindOf(err); k != client.KindTransport && k != client.KindMalformedWire {
		t.Fatalf("expect transport or malformed error, got %v", err)
	}
	if pool.Open() != 0 {
		t.Fatalf("broken connection kept, %d open", pool.Open())
	}
	if dials.Load() != 1 {
		t.Fatalf("dialed %d times", dials.Load())
	}
}
