// Package registry resolves a service name to the addresses of the peers that
// serve it.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Instance is one reachable peer.
type Instance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, service string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, service string, addr string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
	// Watch emits the full instance list after every change until ctx is done.
	Watch(ctx context.Context, service string) <-chan []Instance
	Close() error
}

// Static is an in-process Registry over a fixed table. It backs configurations
// that list peer addresses directly and stands in for etcd in tests.
type Static struct {
	mu       sync.Mutex
	services map[string]map[string]Instance
	watchers map[string][]chan []Instance
}

func NewStatic() *Static {
	return &Static{
		services: make(map[string]map[string]Instance),
		watchers: make(map[string][]chan []Instance),
	}
}

// Register ignores ttl; static entries live until deregistered.
func (s *Static) Register(_ context.Context, service string, instance Instance, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[service] == nil {
		s.services[service] = make(map[string]Instance)
	}
	s.services[service][instance.Addr] = instance
	s.notifyLocked(service)
	return nil
}

func (s *Static) Deregister(_ context.Context, service string, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services[service], addr)
	s.notifyLocked(service)
	return nil
}

// Discover returns the instances sorted by address.
func (s *Static) Discover(_ context.Context, service string) ([]Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(service), nil
}

func (s *Static) Watch(ctx context.Context, service string) <-chan []Instance {
	ch := make(chan []Instance, 1)
	s.mu.Lock()
	s.watchers[service] = append(s.watchers[service], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[service]
		for i, w := range ws {
			if w == ch {
				s.watchers[service] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (s *Static) Close() error {
	return nil
}

func (s *Static) listLocked(service string) []Instance {
	out := make([]Instance, 0, len(s.services[service]))
	for _, inst := range s.services[service] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// notifyLocked replaces any unread update so watchers always see the latest list.
func (s *Static) notifyLocked(service string) {
	list := s.listLocked(service)
	for _, w := range s.watchers[service] {
		select {
		case <-w:
		default:
		}
		w <- list
	}
}
