package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	env := os.Getenv("HQLRPC_ETCD_ENDPOINTS")
	if env == "" {
		t.Skip("HQLRPC_ETCD_ENDPOINTS not set")
	}
	return strings.Split(env, ",")
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcd(etcdEndpoints(t), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	service := "hql-test-" + time.Now().Format("150405.000")
	inst1 := Instance{Addr: "127.0.0.1:15867", Weight: 10, Version: "1.0"}
	inst2 := Instance{Addr: "127.0.0.1:15868", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, service, inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, service, inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister(ctx, service, inst1.Addr); err != nil {
		t.Fatal(err)
	}

	instances, err = reg.Discover(ctx, service)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s after deregister, got %v", inst2.Addr, instances)
	}

	reg.Deregister(ctx, service, inst2.Addr)
}
