package node

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"peerbid/api"
	"peerbid/auction"
	"peerbid/build"
	"peerbid/cryptoutil"
	"peerbid/dispatch"
	"peerbid/identity"
	"peerbid/peers"
	"peerbid/store"
	"peerbid/transport"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v3"
)

type ClientConfig struct {
	Program string    // e.g. "peerbid"
	Stdin   io.Reader // e.g. os.Stdin
	Stdout  io.Writer // e.g. os.Stdout
	Stderr  io.Writer // e.g. os.Stderr
	Args    []string  // e.g. os.Args[1:]
	APIAddr string    // e.g. ":4470"
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Program == "" {
		return fmt.Errorf("missing program name")
	}
	if cfg.Stdin == nil {
		return fmt.Errorf("missing stdin")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}
	if cfg.Stderr == nil {
		cfg.Stderr = io.Discard
	}
	if cfg.APIAddr == "" {
		return fmt.Errorf("missing API addr")
	}
	return nil
}

// RunClientMain runs an interactive auction participant. The participant is
// itself a node: it serves the RPC protocol (so it receives closure
// notifications and peer operations), registers itself with every configured
// peer, and drives auctions from a command loop on stdin.
func RunClientMain(ctx context.Context, cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fs := flag.NewFlagSet(cfg.Program, flag.ContinueOnError)
	var (
		apiAddr       = fs.String("api-addr", cfg.APIAddr, "local RPC HTTP server address")
		advertiseAddr = fs.String("advertise-addr", "", "address peers should use to reach this node (default: api-addr)")
		storeConnStr  = fs.String("store-conn-str", "badger://peerbid-data", "store connection string (mem://store, badger://<dir>, postgres://...)")
		callTimeout   = fs.Duration("call-timeout", transport.DefaultCallTimeout, "per-peer RPC timeout")
		peerFlags     = flagStringSet(fs, "peer", "known peer, format '<peer ID>:<addr>' (optional, repeatable)")
		version       = fs.Bool("version", false, "print version information and exit")
		logLevel      = fs.String("log-level", "warn", "debug, info, warn, error")
		_             = fs.String("config", "", "config file")
	)
	if err := ff.Parse(fs, cfg.Args,
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix("PEERBID"),
	); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *version {
		fmt.Fprintf(cfg.Stdout, "%s version %s date %s\n", cfg.Program, build.Version, build.Date)
		return nil
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(cfg.Stderr)
		logger = level.NewFilter(logger, level.Allow(level.ParseDefault(*logLevel, level.InfoValue())))
	}

	st, closeStore, err := newStore(ctx, *storeConnStr, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := identity.Load(ctx, st)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	if *advertiseAddr == "" {
		*advertiseAddr = *apiAddr
	}

	registry := peers.NewRegistry()
	for _, s := range peerFlags.Get() {
		peerID, addr, ok := strings.Cut(s, ":")
		if !ok || peerID == "" || addr == "" {
			return fmt.Errorf("invalid -peer value %q, want '<peer ID>:<addr>'", s)
		}
		if err := registry.Register(peers.Peer{ID: peerID, Addr: addr}); err != nil {
			return fmt.Errorf("register peer %q: %w", s, err)
		}
	}

	var (
		caller     = &transport.HTTPCaller{Timeout: *callTimeout}
		service    = auction.NewCoreService(st)
		dispatcher = dispatch.NewDispatcher(registry, caller, id.PeerID, log.With(logger, "module", "dispatch"))
	)

	cli := &client{
		stdout:     cfg.Stdout,
		selfID:     id.PeerID,
		service:    service,
		dispatcher: dispatcher,
	}

	handler := api.NewHandler(service, registry, nil, log.With(logger, "module", "api"))
	handler.OnNotification = cli.printNotification

	fmt.Fprintf(cfg.Stdout, "peer ID %s\n", id.PeerID)

	// Tell every configured peer who we are and how to reach us, so their
	// closure notifications find their way back here.
	for _, p := range registry.List() {
		_, err := caller.Call(ctx, p.Addr, "registerClient", peers.Peer{ID: id.PeerID, Addr: *advertiseAddr})
		if err != nil {
			fmt.Fprintf(cfg.Stdout, "warning: register with %s failed: %v\n", p.ID, err)
			continue
		}
		fmt.Fprintf(cfg.Stdout, "registered with %s (%s)\n", p.ID, p.Addr)
	}

	var g run.Group

	{
		logger := log.With(logger, "module", "api")
		server := &http.Server{Handler: handler, Addr: *apiAddr}
		g.Add(func() error {
			level.Info(logger).Log("api_addr", *apiAddr)
			return server.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return cli.loop(ctx, cfg.Stdin)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))
	}

	return g.Run()
}

//
//
//

type client struct {
	stdout     io.Writer
	selfID     string
	service    auction.Service
	dispatcher *dispatch.Dispatcher
}

const clientUsage = `commands:
  open <initial price> <details...>   open an auction
  bid <auction ID> <price>            place a bid
  close <auction ID>                  close your auction and pick the winner
  list                                show known auctions
  help                                show this message
  exit                                quit
`

// loop reads commands until stdin closes, the context is canceled, or the
// user exits. Stdin reads can't be interrupted, so lines arrive on a channel
// fed by a separate goroutine.
func (c *client) loop(ctx context.Context, stdin io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(c.stdout, clientUsage)

	for {
		fmt.Fprintf(c.stdout, "> ")

		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				return nil // stdin closed
			}

			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			cmd, args := fields[0], fields[1:]

			var err error
			switch cmd {
			case "open":
				err = c.open(ctx, args)
			case "bid":
				err = c.bid(ctx, args)
			case "close":
				err = c.close(ctx, args)
			case "list":
				err = c.list(ctx)
			case "help":
				fmt.Fprint(c.stdout, clientUsage)
			case "exit", "quit":
				return nil
			default:
				err = fmt.Errorf("unknown command %q, try 'help'", cmd)
			}

			if err != nil {
				fmt.Fprintf(c.stdout, "error: %v\n", err)
			}
		}
	}
}

func (c *client) open(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: open <initial price> <details...>")
	}

	price, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("initial price %q: %w", args[0], err)
	}

	var (
		auctionID = cryptoutil.NewAuctionID()
		details   = strings.Join(args[1:], " ")
	)

	a, err := c.service.Create(ctx, auctionID, details, c.selfID, price)
	if err != nil {
		return fmt.Errorf("open auction: %w", err)
	}

	c.broadcast(ctx, "auctionOpened", map[string]interface{}{
		"id":           a.ID,
		"details":      a.Details,
		"creator":      a.Creator,
		"initialPrice": a.InitialPrice,
	})

	fmt.Fprintf(c.stdout, "opened auction %s at %v\n", a.ID, a.InitialPrice)

	return nil
}

func (c *client) bid(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: bid <auction ID> <price>")
	}

	auctionID := args[0]

	price, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("price %q: %w", args[1], err)
	}

	placed, err := c.service.PlaceBid(ctx, auctionID, auction.Bid{Price: price, Bidder: c.selfID})
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}

	if !placed.Accepted {
		fmt.Fprintf(c.stdout, "bid rejected: %v does not exceed the current floor of %v\n", price, placed.Floor)
		return nil
	}

	c.broadcast(ctx, "newBid", map[string]interface{}{
		"auctionId": auctionID,
		"bid":       auction.Bid{Price: price, Bidder: c.selfID},
	})

	fmt.Fprintf(c.stdout, "bid %v placed on %s\n", price, auctionID)

	return nil
}

func (c *client) close(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: close <auction ID>")
	}

	auctionID := args[0]

	a, err := c.service.Close(ctx, auctionID, c.selfID)
	if err != nil {
		return fmt.Errorf("close auction: %w", err)
	}

	c.broadcast(ctx, "auctionClosed", map[string]interface{}{
		"auctionId": auctionID,
		"callerId":  c.selfID,
	})

	fmt.Fprintf(c.stdout, "auction %s closed, winner %s at %v\n", a.ID, a.Winner.Bidder, a.Winner.Price)

	return nil
}

func (c *client) list(ctx context.Context) error {
	auctions, err := c.service.List(ctx)
	if err != nil {
		return fmt.Errorf("list auctions: %w", err)
	}

	if len(auctions) == 0 {
		fmt.Fprintf(c.stdout, "no auctions\n")
		return nil
	}

	for _, a := range auctions {
		status := "open"
		if a.Closed() {
			status = fmt.Sprintf("closed, winner %s at %v", a.Winner.Bidder, a.Winner.Price)
		}
		fmt.Fprintf(c.stdout, "%s  %q by %s, floor %v, %d bids (%s)\n",
			a.ID, a.Details, a.Creator, a.Floor(), len(a.Bids), status)
	}

	return nil
}

func (c *client) broadcast(ctx context.Context, method string, payload interface{}) {
	for _, r := range c.dispatcher.Broadcast(ctx, method, payload) {
		if r.Err != nil {
			fmt.Fprintf(c.stdout, "warning: %s to %s failed: %v\n", method, r.Peer.ID, r.Err)
		}
	}
}

func (c *client) printNotification(a *store.Auction) {
	switch {
	case a.Winner != nil:
		fmt.Fprintf(c.stdout, "\nauction %s (%q) closed: winner %s at %v\n> ", a.ID, a.Details, a.Winner.Bidder, a.Winner.Price)
	default:
		fmt.Fprintf(c.stdout, "\nauction %s (%q) closed without a winner\n> ", a.ID, a.Details)
	}
}
