// Package rpctest runs an in-process peer that answers calls with replies
// produced by Go functions. It exists to drive clients end to end in tests.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (one goroutine per connection)
//	  → read CALL header → decode args with the method table → handler → write REPLY
//
// Calls on one connection are answered strictly in order, as a request/reply
// client expects.
package rpctest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hqlrpc/codec"
	"hqlrpc/message"
	"hqlrpc/protocol"
	"hqlrpc/registry"
	"hqlrpc/schema"
	"hqlrpc/transport"
)

// HandlerFunc answers one call. It returns a value of the method's result
// shape, or an error. A *message.ApplicationException error is sent as an
// EXCEPTION message as is; any other error becomes INTERNAL_ERROR.
type HandlerFunc func(ctx context.Context, args *codec.Struct) (*codec.Struct, error)

// Received is one call as the server decoded it.
type Received struct {
	Envelope message.Envelope
	Args     *codec.Struct
}

type Options struct {
	// Wrap frames accepted connections; Buffered by default.
	Wrap     func(net.Conn) transport.Transport
	Protocol protocol.Options
	Logger   zerolog.Logger
}

type Server struct {
	service  *schema.Service
	opts     Options
	listener net.Listener
	wg       sync.WaitGroup // live connections, for graceful shutdown
	shutdown atomic.Bool

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	received []Received
	conns    map[net.Conn]struct{}

	registry      registry.Registry
	serviceName   string
	advertiseAddr string
}

func NewServer(service *schema.Service, opts Options) *Server {
	if opts.Wrap == nil {
		opts.Wrap = func(c net.Conn) transport.Transport { return transport.NewBuffered(c, 0) }
	}
	if opts.Protocol == (protocol.Options{}) {
		opts.Protocol = protocol.DefaultOptions()
	}
	return &Server{
		service:  service,
		opts:     opts,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Handle sets the handler for a method of the server's service.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Start listens on a loopback port and serves in the background. With a
// registry, the listening address is also registered under serviceName.
func (s *Server) Start(ctx context.Context, reg registry.Registry, serviceName string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = ln
	s.advertiseAddr = ln.Addr().String()

	if reg != nil {
		if err := reg.Register(ctx, serviceName, registry.Instance{Addr: s.advertiseAddr, Weight: 1}, 10); err != nil {
			ln.Close()
			return err
		}
		s.registry = reg
		s.serviceName = serviceName
	}

	go s.serve()
	return nil
}

func (s *Server) Addr() string {
	return s.advertiseAddr
}

// Received returns every call decoded so far, in arrival order.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Close makes Accept fail; only log if that was not the cause.
			if !s.shutdown.Load() {
				s.opts.Logger.Error().Err(err).Msg("accept failed")
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	t := s.opts.Wrap(conn)
	for {
		if err := s.serveOne(t); err != nil {
			if !errors.Is(err, io.EOF) && !s.shutdown.Load() {
				s.opts.Logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("connection dropped")
			}
			return
		}
	}
}

// serveOne reads one call and writes its reply.
func (s *Server) serveOne(t transport.Transport) error {
	r := protocol.NewReader(t, s.opts.Protocol)
	env, err := r.ReadMessageBegin()
	if err != nil {
		return err
	}

	m, ok := s.service.Method(env.Name)
	if !ok {
		if err := r.Skip(schema.Struct); err != nil {
			return err
		}
		return s.writeException(t, env, &message.ApplicationException{
			Type:    message.ExceptionUnknownMethod,
			Message: "unknown method " + env.Name,
		})
	}

	args, err := codec.Decode(r, m.Args)
	if err != nil {
		return err
	}
	if err := r.ReadMessageEnd(); err != nil {
		return err
	}

	s.mu.Lock()
	s.received = append(s.received, Received{Envelope: env, Args: args})
	fn := s.handlers[env.Name]
	s.mu.Unlock()

	if fn == nil {
		return s.writeException(t, env, &message.ApplicationException{
			Type:    message.ExceptionUnknownMethod,
			Message: "no handler for " + env.Name,
		})
	}

	result, err := fn(context.Background(), args)
	if env.Kind == message.Oneway {
		return nil
	}
	if err != nil {
		var ae *message.ApplicationException
		if !errors.As(err, &ae) {
			ae = &message.ApplicationException{Type: message.ExceptionInternalError, Message: err.Error()}
		}
		return s.writeException(t, env, ae)
	}

	w := codec.NewGeneric(s.opts.Protocol)
	if err := w.WriteMessage(t, message.Envelope{Name: env.Name, Kind: message.Reply, SeqID: env.SeqID}, result); err != nil {
		return err
	}
	return t.Flush()
}

func (s *Server) writeException(t transport.Transport, env message.Envelope, ae *message.ApplicationException) error {
	body := codec.New(message.ApplicationExceptionDesc).
		Set("message", ae.Message).
		Set("type", int32(ae.Type))
	w := codec.NewGeneric(s.opts.Protocol)
	if err := w.WriteMessage(t, message.Envelope{Name: env.Name, Kind: message.Exception, SeqID: env.SeqID}, body); err != nil {
		return err
	}
	return t.Flush()
}

// Close performs graceful shutdown:
//  1. Deregister (clients stop discovering this server)
//  2. Set the shutdown flag so the Accept error is recognised as intentional
//  3. Close the listener and every open connection
//  4. Wait for connection goroutines to exit, up to timeout
func (s *Server) Close(timeout time.Duration) error {
	if s.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		s.registry.Deregister(ctx, s.serviceName, s.advertiseAddr)
		cancel()
	}

	s.shutdown.Store(true)
	s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("rpctest: timeout waiting for connections to close")
	}
}
