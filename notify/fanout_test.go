package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"peerbid/notify"
	"peerbid/peers"
	"peerbid/store"
	"peerbid/transport"

	"github.com/go-kit/log"
)

func TestFanoutDeliversToAllPeers(t *testing.T) {
	var (
		mu       sync.Mutex
		received = map[string]string{} // server name: auction ID
	)

	newServer := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				AuctionID string         `json:"auctionId"`
				Message   string         `json:"message"`
				Auction   *store.Auction `json:"auction"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Error(err)
			}
			if body.AuctionID != body.Auction.ID {
				t.Errorf("auctionId %q does not match auction %q", body.AuctionID, body.Auction.ID)
			}
			if body.Message == "" {
				t.Error("notification has no message")
			}
			mu.Lock()
			received[name] = body.Auction.ID
			mu.Unlock()
			w.Write([]byte(`{"status":"success"}`))
		}))
	}

	s1, s2 := newServer("p1"), newServer("p2")
	defer s1.Close()
	defer s2.Close()

	registry := peers.NewRegistry()
	registry.Register(peers.Peer{ID: "p1", Addr: s1.URL})
	registry.Register(peers.Peer{ID: "p2", Addr: s2.URL})

	fanout := notify.NewFanout(registry, &transport.HTTPCaller{}, "self", log.NewNopLogger())

	a := &store.Auction{
		ID:       "a1",
		Creator:  "c1",
		Bids:     []store.Bid{{Price: 70, Bidder: "b1"}},
		Winner:   &store.Bid{Price: 70, Bidder: "b1"},
		ClosedAt: time.Now().UTC(),
	}

	deliveries, err := fanout.AuctionClosed(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}

	if want, have := 2, len(deliveries); want != have {
		t.Fatalf("deliveries: want %d, have %d", want, have)
	}

	for _, name := range []string{"p1", "p2"} {
		if want, have := "a1", received[name]; want != have {
			t.Errorf("%s: want auction %q, have %q", name, want, have)
		}
	}
}

func TestFanoutToleratesDeadPeer(t *testing.T) {
	var delivered int32

	s1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&delivered, 1)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer s1.Close()

	registry := peers.NewRegistry()
	registry.Register(peers.Peer{ID: "p1", Addr: s1.URL})
	registry.Register(peers.Peer{ID: "p2", Addr: "127.0.0.1:1"}) // nothing listening
	registry.Register(peers.Peer{ID: "p3", Addr: s1.URL})

	fanout := notify.NewFanout(registry, &transport.HTTPCaller{Timeout: time.Second}, "self", log.NewNopLogger())

	deliveries, err := fanout.AuctionClosed(context.Background(), &store.Auction{ID: "a1"})
	if err == nil {
		t.Fatal("want aggregate error for the dead peer")
	}

	if want, have := 3, len(deliveries); want != have {
		t.Fatalf("deliveries: want %d, have %d", want, have)
	}

	var failed int
	for _, d := range deliveries {
		if d.Err != nil {
			failed++
			if want, have := "p2", d.Peer.ID; want != have {
				t.Errorf("failed peer: want %q, have %q", want, have)
			}
		}
	}

	if want, have := 1, failed; want != have {
		t.Errorf("failed deliveries: want %d, have %d", want, have)
	}

	if want, have := int32(2), atomic.LoadInt32(&delivered); want != have {
		t.Errorf("live peer deliveries: want %d, have %d", want, have)
	}
}

func TestFanoutSkipsSelf(t *testing.T) {
	registry := peers.NewRegistry()
	registry.Register(peers.Peer{ID: "self", Addr: "127.0.0.1:1"})

	fanout := notify.NewFanout(registry, &transport.HTTPCaller{}, "self", log.NewNopLogger())

	deliveries, err := fanout.AuctionClosed(context.Background(), &store.Auction{ID: "a1"})
	if err != nil {
		t.Fatal(err)
	}

	if want, have := 0, len(deliveries); want != have {
		t.Errorf("deliveries: want %d, have %d", want, have)
	}
}
