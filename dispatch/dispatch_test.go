package dispatch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peerbid/dispatch"
	"peerbid/peers"
	"peerbid/transport"

	"github.com/go-kit/log"
)

func TestBroadcast(t *testing.T) {
	newServer := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if want, have := "/v0/newBid", r.URL.Path; want != have {
				t.Errorf("path: want %q, have %q", want, have)
			}
			json.NewEncoder(w).Encode(map[string]string{"status": "success", "from": name})
		}))
	}

	s1, s2 := newServer("p1"), newServer("p2")
	defer s1.Close()
	defer s2.Close()

	registry := peers.NewRegistry()
	registry.Register(peers.Peer{ID: "p1", Addr: s1.URL})
	registry.Register(peers.Peer{ID: "p2", Addr: s2.URL})
	registry.Register(peers.Peer{ID: "self", Addr: "127.0.0.1:1"})

	d := dispatch.NewDispatcher(registry, &transport.HTTPCaller{}, "self", log.NewNopLogger())

	results := d.Broadcast(context.Background(), "newBid", map[string]string{"auctionId": "a1"})

	if want, have := 2, len(results); want != have {
		t.Fatalf("results: want %d, have %d", want, have)
	}

	from := map[string]string{}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("peer %s: %v", r.Peer.ID, r.Err)
			continue
		}

		var body struct {
			From string `json:"from"`
		}
		if err := json.Unmarshal(r.Response, &body); err != nil {
			t.Fatal(err)
		}
		from[r.Peer.ID] = body.From
	}

	want := map[string]string{"p1": "p1", "p2": "p2"}
	for id, name := range want {
		if from[id] != name {
			t.Errorf("peer %s: want response from %q, have %q", id, name, from[id])
		}
	}
}

func TestBroadcastPartialFailure(t *testing.T) {
	s1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer s1.Close()

	registry := peers.NewRegistry()
	registry.Register(peers.Peer{ID: "p1", Addr: s1.URL})
	registry.Register(peers.Peer{ID: "p2", Addr: "127.0.0.1:1"})

	d := dispatch.NewDispatcher(registry, &transport.HTTPCaller{Timeout: time.Second}, "self", log.NewNopLogger())

	results := d.Broadcast(context.Background(), "auctionOpened", struct{}{})

	if want, have := 2, len(results); want != have {
		t.Fatalf("results: want %d, have %d", want, have)
	}

	outcomes := map[string]error{}
	for _, r := range results {
		outcomes[r.Peer.ID] = r.Err
	}

	if outcomes["p1"] != nil {
		t.Errorf("p1: %v", outcomes["p1"])
	}
	if outcomes["p2"] == nil {
		t.Error("p2: want error, have nil")
	}
}

func TestBroadcastNoPeers(t *testing.T) {
	d := dispatch.NewDispatcher(peers.NewRegistry(), &transport.HTTPCaller{}, "self", log.NewNopLogger())

	if results := d.Broadcast(context.Background(), "newBid", struct{}{}); len(results) != 0 {
		t.Errorf("want no results, have %d", len(results))
	}
}
