package registry

import (
	"context"
	"testing"
	"time"
)

func TestStaticDiscoverSorted(t *testing.T) {
	reg := NewStatic()
	ctx := context.Background()

	reg.Register(ctx, "hql", Instance{Addr: "10.0.0.2:15867", Weight: 1}, 0)
	reg.Register(ctx, "hql", Instance{Addr: "10.0.0.1:15867", Weight: 1}, 0)
	reg.Register(ctx, "other", Instance{Addr: "10.0.0.9:15867"}, 0)

	got, err := reg.Discover(ctx, "hql")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Addr != "10.0.0.1:15867" || got[1].Addr != "10.0.0.2:15867" {
		t.Fatalf("unexpected instances: %v", got)
	}

	reg.Deregister(ctx, "hql", "10.0.0.1:15867")
	got, _ = reg.Discover(ctx, "hql")
	if len(got) != 1 {
		t.Fatalf("expect 1 instance after deregister, got %v", got)
	}
}

func TestStaticWatchSeesLatest(t *testing.T) {
	reg := NewStatic()
	ctx, cancel := context.WithCancel(context.Background())

	ch := reg.Watch(ctx, "hql")
	reg.Register(ctx, "hql", Instance{Addr: "a:1"}, 0)
	reg.Register(ctx, "hql", Instance{Addr: "b:1"}, 0)

	select {
	case list := <-ch:
		if len(list) != 2 {
			t.Fatalf("expect latest list with 2 instances, got %v", list)
		}
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expect channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed")
	}
}
