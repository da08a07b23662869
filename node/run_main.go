// Package node wires flags, logging, stores, and HTTP servers into runnable
// programs.
package node

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"peerbid/api"
	"peerbid/auction"
	"peerbid/build"
	"peerbid/debug"
	"peerbid/identity"
	"peerbid/notify"
	"peerbid/peers"
	"peerbid/store"
	"peerbid/store/badgerstore"
	"peerbid/store/memstore"
	"peerbid/store/pgstore"
	"peerbid/transport"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v3"
)

type RunConfig struct {
	Program   string    // e.g. "peerbidd"
	Stdout    io.Writer // e.g. os.Stdout
	Stderr    io.Writer // e.g. os.Stderr
	Args      []string  // e.g. os.Args[1:]
	APIAddr   string    // e.g. ":4460"
	DebugAddr string    // e.g. ":4461"
}

func (cfg *RunConfig) Validate() error {
	if cfg.Program == "" {
		return fmt.Errorf("missing program name")
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
	if cfg.DebugAddr == "" {
		return fmt.Errorf("missing debug addr")
	}
	return nil
}

// RunMain runs an auction node: the public RPC server, the private debug
// server, and the periodic store metrics refresh, until a signal arrives or a
// component fails.
func RunMain(ctx context.Context, cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fs := flag.NewFlagSet(cfg.Program, flag.ContinueOnError)
	var (
		apiAddr              = fs.String("api-addr", cfg.APIAddr, "public API HTTP server address")
		debugAddr            = fs.String("debug-addr", cfg.DebugAddr, "private debug HTTP server address")
		storeConnStr         = fs.String("store-conn-str", "mem://store", "store connection string (mem://store, badger://<dir>, postgres://...)")
		storeMetricsInterval = fs.Duration("store-metrics-interval", 10*time.Second, "how often to update store metrics")
		callTimeout          = fs.Duration("call-timeout", transport.DefaultCallTimeout, "per-peer RPC timeout")
		peerFlags            = flagStringSet(fs, "peer", "known peer, format '<peer ID>:<addr>' (optional, repeatable)")
		version              = fs.Bool("version", false, "print version information and exit")
		logLevel             = fs.String("log-level", "info", "debug, info, warn, error")
		_                    = fs.String("config", "", "config file")
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

	level.Info(logger).Log("program", cfg.Program, "build_version", build.Version, "build_date", build.Date)

	level.Debug(logger).Log("msg", "creating store")

	st, closeStore, err := newStore(ctx, *storeConnStr, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	id, err := identity.Load(ctx, st)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	level.Info(logger).Log("peer_id", id.PeerID)

	registry := peers.NewRegistry()
	for _, s := range peerFlags.Get() {
		peerID, addr, ok := strings.Cut(s, ":")
		if !ok || peerID == "" || addr == "" {
			return fmt.Errorf("invalid -peer value %q, want '<peer ID>:<addr>'", s)
		}
		if err := registry.Register(peers.Peer{ID: peerID, Addr: addr}); err != nil {
			return fmt.Errorf("register peer %q: %w", s, err)
		}
		level.Info(logger).Log("msg", "added peer", "peer_id", peerID, "addr", addr)
	}

	var (
		caller  = &transport.HTTPCaller{Timeout: *callTimeout}
		service = auction.NewCoreService(st)
		fanout  = notify.NewFanout(registry, caller, id.PeerID, log.With(logger, "module", "notify"))
	)

	var g run.Group

	{
		logger := log.With(logger, "module", "api")
		apiHandler := api.NewHandler(service, registry, fanout, logger)
		server := &http.Server{Handler: apiHandler, Addr: *apiAddr}
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
		logger := log.With(logger, "module", "debug")
		debugHandler := debug.NewHandler()
		server := &http.Server{Handler: debugHandler, Addr: *debugAddr}
		g.Add(func() error {
			level.Info(logger).Log("debug_addr", *debugAddr)
			return server.ListenAndServe()
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}

	{
		logger := log.With(logger, "module", "store_metrics")
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			level.Info(logger).Log("interval", *storeMetricsInterval)
			ticker := time.NewTicker(*storeMetricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := store.UpdateMetrics(ctx, st); err != nil {
						level.Error(logger).Log("error", err)
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))
	}

	level.Debug(logger).Log("msg", "running")

	return g.Run()
}

func newStore(ctx context.Context, connStr string, logger log.Logger) (store.Store, func(), error) {
	switch {
	case strings.HasPrefix(connStr, "postgres"):
		level.Info(logger).Log("store", "postgres")
		s, err := pgstore.NewStore(ctx, connStr, log.With(logger, "module", "store"))
		if err != nil {
			return nil, nil, fmt.Errorf("create Postgres store: %w", err)
		}
		return s, func() {
			level.Debug(logger).Log("msg", "closing Postgres store")
			if err := s.Close(); err != nil {
				level.Error(logger).Log("msg", "close Postgres store failed", "err", err)
			}
		}, nil

	case strings.HasPrefix(connStr, "badger://"):
		dir := strings.TrimPrefix(connStr, "badger://")
		level.Info(logger).Log("store", "badger", "dir", dir)
		s, err := badgerstore.NewStore(dir, log.With(logger, "module", "store"))
		if err != nil {
			return nil, nil, fmt.Errorf("create Badger store: %w", err)
		}
		return s, func() {
			level.Debug(logger).Log("msg", "closing Badger store")
			if err := s.Close(); err != nil {
				level.Error(logger).Log("msg", "close Badger store failed", "err", err)
			}
		}, nil

	default:
		level.Warn(logger).Log("store", "in-memory")
		return memstore.NewStore(), func() {}, nil
	}
}

func IsSignalError(err error) bool {
	var (
		sigErrVal run.SignalError
		sigErrPtr *run.SignalError
	)
	return errors.As(err, &sigErrVal) || errors.As(err, &sigErrPtr)
}

//
//
//

type stringSet struct{ values []string }

var _ flag.Value = (*stringSet)(nil)

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
