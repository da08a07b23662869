// Package peers tracks the remote nodes that registered themselves for
// auction closure notifications.
package peers

import (
	"fmt"
	"strings"
	"sync"

	"peerbid/metrics"

	"golang.org/x/exp/slices"
)

// Peer is a registered remote node. ID is the hex form of the peer's public
// key, Addr is the HTTP endpoint its RPC server listens on.
type Peer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// Registry is an in-memory set of registered peers. Registration is
// idempotent, re-registering an ID replaces its address.
type Registry struct {
	mu    sync.Mutex
	peers map[string]Peer
}

func NewRegistry() *Registry {
	return &Registry{
		peers: map[string]Peer{},
	}
}

func (r *Registry) Register(p Peer) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("missing peer ID")
	case p.Addr == "":
		return fmt.Errorf("missing peer address")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.peers[p.ID] = p
	metrics.RegisteredClients.Set(float64(len(r.peers)))

	return nil
}

func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, id)
	metrics.RegisteredClients.Set(float64(len(r.peers)))
}

// List returns the registered peers sorted by ID.
func (r *Registry) List() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		ps = append(ps, p)
	}

	slices.SortFunc(ps, func(a, b Peer) int {
		return strings.Compare(a.ID, b.ID)
	})

	return ps
}

// Resolve returns the endpoint address for a registered peer ID.
func (r *Registry) Resolve(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	return p.Addr, ok
}
