package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/hqlrpc/"

// Etcd implements Registry on etcd v3, used as a "distributed phonebook" for HQL endpoints:
//
//	Key:   /hqlrpc/{Service}/{Addr}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if a server crashes, the lease expires
// and the entry is automatically removed, so clients never dial ghost
// instances.
type Etcd struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
}

// NewEtcd connects to the given etcd endpoints.
func NewEtcd(endpoints []string, dialTimeout time.Duration) (*Etcd, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Etcd{client: c}, nil
}

func servicePrefix(service string) string {
	return keyPrefix + service + "/"
}

// Register adds an instance with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// The lease id stays local so one Etcd can register many instances.
func (r *Etcd) Register(ctx context.Context, service string, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, servicePrefix(service)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// KeepAlive must outlive the registration call, so it gets its own context.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an instance, normally during graceful shutdown.
func (r *Etcd) Deregister(ctx context.Context, service string, addr string) error {
	_, err := r.client.Delete(ctx, servicePrefix(service)+addr)
	return err
}

// Watch re-reads the full instance list on every change under the service
// prefix. The channel closes when ctx is done.
func (r *Etcd) Watch(ctx context.Context, service string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, servicePrefix(service), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetching is simpler than applying individual events.
			instances, err := r.Discover(ctx, service)
			if err != nil {
				log.Warn().Err(err).Str("service", service).Msg("registry watch refresh failed")
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns every instance currently registered for service.
func (r *Etcd) Discover(ctx context.Context, service string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			log.Warn().Err(err).Str("key", string(kv.Key)).Msg("skipping malformed registry entry")
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *Etcd) Close() error {
	return r.client.Close()
}
