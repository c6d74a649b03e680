package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"hqlrpc/registry"
)

// ConsistentHashBalancer maps keys to instances using a hash ring.
// The same key always maps to the same instance (until the ring changes),
// giving affinity for server-side state such as open scanners.
//
// Virtual nodes: each real instance is mapped to N virtual nodes on the ring.
// Without virtual nodes, 3 instances might cluster together on the ring,
// causing uneven load distribution.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	sig   string                        // addresses the ring was built from
	ring  []uint32                      // Sorted hash values on the ring
	nodes map[uint32]registry.Instance // Hash value → instance mapping
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.Instance),
	}
}

// addLocked places an instance onto the hash ring with N virtual nodes.
// Each virtual node is hashed from "{addr}#{i}" to spread evenly across the ring.
func (b *ConsistentHashBalancer) addLocked(instance registry.Instance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
}

func (b *ConsistentHashBalancer) sortLocked() {
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

// Pick finds the instance responsible for key. The ring is rebuilt whenever
// the discovered instance set differs from the one it was built from.
func (b *ConsistentHashBalancer) Pick(instances []registry.Instance, key string) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sig := signature(instances); sig != b.sig {
		b.ring = b.ring[:0]
		b.nodes = make(map[uint32]registry.Instance, len(instances)*b.replicas)
		for _, inst := range instances {
			b.addLocked(inst)
		}
		b.sortLocked()
		b.sig = sig
	}

	inst := b.lookupLocked(key)
	return &inst, nil
}

// lookupLocked binary-searches for the first node >= hash(key), wrapping to
// the first node past the end of the ring.
func (b *ConsistentHashBalancer) lookupLocked(key string) registry.Instance {
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]]
}

func signature(instances []registry.Instance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",")
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
