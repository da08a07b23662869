package peers_test

import (
	"testing"

	"peerbid/peers"

	"github.com/google/go-cmp/cmp"
)

func TestRegistry(t *testing.T) {
	r := peers.NewRegistry()

	if want, have := 0, len(r.List()); want != have {
		t.Fatalf("empty registry: want %d peers, have %d", want, have)
	}

	if err := r.Register(peers.Peer{ID: "bbb", Addr: "127.0.0.1:2001"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(peers.Peer{ID: "aaa", Addr: "127.0.0.1:2002"}); err != nil {
		t.Fatal(err)
	}

	// Re-registering is idempotent and updates the address.
	if err := r.Register(peers.Peer{ID: "bbb", Addr: "127.0.0.1:2003"}); err != nil {
		t.Fatal(err)
	}

	want := []peers.Peer{
		{ID: "aaa", Addr: "127.0.0.1:2002"},
		{ID: "bbb", Addr: "127.0.0.1:2003"},
	}
	if diff := cmp.Diff(want, r.List()); diff != "" {
		t.Errorf("peers mismatch (-want +have):\n%s", diff)
	}

	addr, ok := r.Resolve("bbb")
	if !ok {
		t.Fatal("bbb not resolvable")
	}
	if want, have := "127.0.0.1:2003", addr; want != have {
		t.Errorf("addr: want %q, have %q", want, have)
	}

	r.Deregister("bbb")
	r.Deregister("never-registered") // no-op

	if _, ok := r.Resolve("bbb"); ok {
		t.Error("bbb still resolvable after deregister")
	}

	if want, have := 1, len(r.List()); want != have {
		t.Errorf("peers after deregister: want %d, have %d", want, have)
	}
}

func TestRegistryValidation(t *testing.T) {
	r := peers.NewRegistry()

	if err := r.Register(peers.Peer{Addr: "127.0.0.1:2001"}); err == nil {
		t.Error("register without ID accepted")
	}
	if err := r.Register(peers.Peer{ID: "aaa"}); err == nil {
		t.Error("register without address accepted")
	}
}
