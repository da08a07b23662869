// Command smoketest drives a full auction lifecycle against running peerbid
// nodes and verifies the outcome. Point it at one node to check the local
// flow, or at several to check that broadcast operations propagate.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v3"
)

func main() {
	fs := flag.NewFlagSet("smoketest", flag.ExitOnError)
	var (
		addrs   = flagStringSet(fs, "addr", "node API address (repeatable, first is the primary)")
		timeout = fs.Duration("timeout", 10*time.Second, "per-request timeout")
		verbose = fs.Bool("v", false, "log every request")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("SMOKETEST")); err != nil {
		log.Fatal(err)
	}

	if len(addrs.Get()) == 0 {
		log.Fatal("at least one -addr is required")
	}

	st := &smoketest{
		addrs:   addrs.Get(),
		client:  &http.Client{Timeout: *timeout},
		verbose: *verbose,
	}

	if err := st.run(); err != nil {
		log.Fatalf("FAIL: %v", err)
	}

	log.Printf("OK")
}

type smoketest struct {
	addrs   []string
	client  *http.Client
	verbose bool
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Auction *struct {
		ID     string `json:"id"`
		Bids   []bid  `json:"bids"`
		Winner *bid   `json:"winner"`
	} `json:"auction"`
}

type bid struct {
	Price  float64 `json:"price"`
	Bidder string  `json:"bidder"`
}

func (st *smoketest) run() error {
	for _, addr := range st.addrs {
		if _, err := st.get(addr, "/-/ping"); err != nil {
			return fmt.Errorf("ping %s: %w", addr, err)
		}
	}

	var (
		primary   = st.addrs[0]
		auctionID = fmt.Sprintf("smoketest-%d", time.Now().UnixNano())
	)

	env, err := st.post(primary, "/v0/auctionOpened", fmt.Sprintf(
		`{"id":%q,"details":"smoketest auction","creator":"smoketest-creator","initialPrice":50}`, auctionID))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if env.Status != "success" {
		return fmt.Errorf("open: status %q (%s)", env.Status, env.Message)
	}

	// A bid at the initial price must be softly rejected.
	env, err = st.post(primary, "/v0/newBid", fmt.Sprintf(
		`{"auctionId":%q,"bid":{"price":50,"bidder":"smoketest-low"}}`, auctionID))
	if err != nil {
		return fmt.Errorf("low bid: %w", err)
	}
	if env.Status != "fail" {
		return fmt.Errorf("low bid: want status fail, have %q", env.Status)
	}

	for _, b := range []string{
		fmt.Sprintf(`{"auctionId":%q,"bid":{"price":60,"bidder":"smoketest-b1"}}`, auctionID),
		fmt.Sprintf(`{"auctionId":%q,"bid":{"price":70,"bidder":"smoketest-b2"}}`, auctionID),
	} {
		env, err = st.post(primary, "/v0/newBid", b)
		if err != nil {
			return fmt.Errorf("bid: %w", err)
		}
		if env.Status != "success" {
			return fmt.Errorf("bid: status %q (%s)", env.Status, env.Message)
		}
	}

	// Only the creator may close.
	if env, err = st.post(primary, "/v0/auctionClosed", fmt.Sprintf(
		`{"auctionId":%q,"callerId":"somebody-else"}`, auctionID)); err == nil && env.Status == "success" {
		return fmt.Errorf("close by non-creator succeeded")
	}

	env, err = st.post(primary, "/v0/auctionClosed", fmt.Sprintf(
		`{"auctionId":%q,"callerId":"smoketest-creator"}`, auctionID))
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if env.Status != "success" || env.Auction == nil || env.Auction.Winner == nil {
		return fmt.Errorf("close: status %q, auction %+v", env.Status, env.Auction)
	}
	if want, have := "smoketest-b2", env.Auction.Winner.Bidder; want != have {
		return fmt.Errorf("winner: want %s, have %s", want, have)
	}
	if want, have := 70.0, env.Auction.Winner.Price; want != have {
		return fmt.Errorf("winning price: want %v, have %v", want, have)
	}

	// Every node should agree on the settled auction, eventually.
	for _, addr := range st.addrs {
		if err := st.await(addr, auctionID); err != nil {
			return fmt.Errorf("verify on %s: %w", addr, err)
		}
	}

	return nil
}

func (st *smoketest) await(addr, auctionID string) error {
	deadline := time.Now().Add(10 * time.Second)

	for {
		env, err := st.get(addr, "/v0/auction?id="+auctionID)
		if err == nil && env.Auction != nil && env.Auction.Winner != nil {
			return nil
		}

		if time.Now().After(deadline) {
			if err != nil {
				return err
			}
			return fmt.Errorf("auction not settled: %+v", env.Auction)
		}

		time.Sleep(250 * time.Millisecond)
	}
}

func (st *smoketest) post(addr, path, body string) (envelope, error) {
	return st.do("POST", addr, path, strings.NewReader(body))
}

func (st *smoketest) get(addr, path string) (envelope, error) {
	return st.do("GET", addr, path, nil)
}

func (st *smoketest) do(method, addr, path string, body io.Reader) (envelope, error) {
	uri := addr
	if !strings.HasPrefix(uri, "http") {
		uri = "http://" + uri
	}
	uri += path

	if st.verbose {
		log.Printf("%s %s", method, uri)
	}

	req, err := http.NewRequest(method, uri, body)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := st.client.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%s: decode %q: %w", resp.Status, bytes.TrimSpace(raw), err)
	}

	if st.verbose {
		log.Printf("  %s status=%s", resp.Status, env.Status)
	}

	return env, nil
}

//
//
//

type stringSet struct{ values []string }

func flagStringSet(fs *flag.FlagSet, name string, usage string) *stringSet {
	ss := &stringSet{}
	fs.Var(ss, name, usage)
	return ss
}

func (ss *stringSet) Set(value string) error {
	for _, v := range ss.values {
		if value == v {
			return nil
		}
	}
	ss.values = append(ss.values, value)
	return nil
}

func (ss *stringSet) String() string {
	switch len(ss.values) {
	case 0:
		return "<empty>"
	default:
		return strings.Join(ss.values, ", ")
	}
}

func (ss *stringSet) Get() []string {
	return ss.values
}
