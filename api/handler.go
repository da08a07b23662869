// Package api is the HTTP RPC surface a node exposes to its peers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"peerbid/auction"
	"peerbid/debug"
	"peerbid/notify"
	"peerbid/peers"
	"peerbid/store"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
)

var (
	ErrNoAuctionID = errors.New("no auction ID")
	ErrNoCreator   = errors.New("no creator")
	ErrNoBidder    = errors.New("no bidder")
	ErrNoCallerID  = errors.New("no caller ID")
	ErrNoPeerID    = errors.New("no peer ID")
	ErrNoPeerAddr  = errors.New("no peer address")
	ErrNoAuction   = errors.New("no auction")
	ErrBadPrice    = errors.New("price must be a finite number")
)

// ClosureNotifier pushes settlement notifications to registered peers after a
// successful close. notify.Fanout implements it.
type ClosureNotifier interface {
	AuctionClosed(ctx context.Context, a *store.Auction) ([]notify.Delivery, error)
}

const notifyTimeout = 30 * time.Second

type Handler struct {
	router   *mux.Router
	logger   log.Logger
	service  auction.Service
	registry *peers.Registry
	notifier ClosureNotifier

	// OnNotification, if set, is invoked for every inbound
	// auctionClosedNotification. Client nodes use it to surface settlements
	// in the CLI.
	OnNotification func(a *store.Auction)
}

func NewHandler(service auction.Service, registry *peers.Registry, notifier ClosureNotifier, logger log.Logger) *Handler {
	s := &Handler{
		router:   mux.NewRouter(),
		logger:   logger,
		service:  service,
		registry: registry,
		notifier: notifier,
	}

	s.router.Methods("GET").Path("/-/ping").HandlerFunc(s.handleGetPing)
	s.router.Methods("GET").Path("/-/panic").HandlerFunc(s.handleGetPanic)

	s.router.Methods("POST").Path("/v0/registerClient").HandlerFunc(s.handleRegisterClient)
	s.router.Methods("POST").Path("/v0/auctionOpened").HandlerFunc(s.handleAuctionOpened)
	s.router.Methods("POST").Path("/v0/newBid").HandlerFunc(s.handleNewBid)
	s.router.Methods("POST").Path("/v0/auctionClosed").HandlerFunc(s.handleAuctionClosed)
	s.router.Methods("POST").Path("/v0/auctionClosedNotification").HandlerFunc(s.handleAuctionClosedNotification)

	s.router.Methods("GET").Path("/v0/auction").HandlerFunc(s.handleGetAuction)
	s.router.Methods("GET").Path("/v0/auctions").HandlerFunc(s.handleGetAuctions)

	s.router.Use(
		corsHeadersMiddleware,
		debug.LoggingMiddleware(s.logger),
		debug.MetricsMiddleware,
		panicRecoveryMiddleware(s.logger), // should be after observability middlewares
		// the handler executes here
	)

	return s
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

//
//
//

func (s *Handler) handleGetPing(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		respondError(w, r, fmt.Errorf("ping: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	respondOK(w, r, envelope{Status: statusSuccess})
}

func (s *Handler) handleGetPanic(w http.ResponseWriter, r *http.Request) {
	panic("requested panic")
}

//
//
//

type registerClientRequest struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

func (req *registerClientRequest) validate() error {
	var merr multiError
	merr.addIf(req.ID == "", ErrNoPeerID)
	merr.addIf(req.Addr == "", ErrNoPeerAddr)
	return merr.yield()
}

func (s *Handler) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode register request: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, r, fmt.Errorf("request invalid: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := s.registry.Register(peers.Peer{ID: req.ID, Addr: req.Addr}); err != nil {
		respondError(w, r, fmt.Errorf("register client: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	level.Debug(s.logger).Log("registered", req.ID, "addr", req.Addr)

	respondOK(w, r, envelope{Status: statusRegistered})
}

//
//
//

type auctionOpenedRequest struct {
	ID           string  `json:"id"`
	Details      string  `json:"details"`
	Creator      string  `json:"creator"`
	InitialPrice float64 `json:"initialPrice"`
}

func (req *auctionOpenedRequest) validate() error {
	var merr multiError
	merr.addIf(req.ID == "", ErrNoAuctionID)
	merr.addIf(req.Creator == "", ErrNoCreator)
	merr.addIf(math.IsNaN(req.InitialPrice) || math.IsInf(req.InitialPrice, 0), ErrBadPrice)
	return merr.yield()
}

func (s *Handler) handleAuctionOpened(w http.ResponseWriter, r *http.Request) {
	var req auctionOpenedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode auction opened request: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, r, fmt.Errorf("request invalid: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	a, err := s.service.Create(r.Context(), req.ID, req.Details, req.Creator, req.InitialPrice)
	if err != nil {
		respondError(w, r, fmt.Errorf("open auction: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	respondOK(w, r, envelope{Status: statusSuccess, Auction: a})
}

//
//
//

type newBidRequest struct {
	AuctionID string      `json:"auctionId"`
	Bid       auction.Bid `json:"bid"`
}

func (req *newBidRequest) validate() error {
	var merr multiError
	merr.addIf(req.AuctionID == "", ErrNoAuctionID)
	merr.addIf(req.Bid.Bidder == "", ErrNoBidder)
	merr.addIf(math.IsNaN(req.Bid.Price) || math.IsInf(req.Bid.Price, 0), ErrBadPrice)
	return merr.yield()
}

func (s *Handler) handleNewBid(w http.ResponseWriter, r *http.Request) {
	var req newBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode bid request: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, r, fmt.Errorf("request invalid: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	placed, err := s.service.PlaceBid(r.Context(), req.AuctionID, req.Bid)
	if err != nil {
		respondError(w, r, fmt.Errorf("place bid: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	if !placed.Accepted {
		// A too-low bid is an expected outcome, not an error. The bidder
		// learns the price they have to beat.
		respondOK(w, r, envelope{
			Status:  statusFail,
			Message: fmt.Sprintf("bid of %v does not exceed the current floor of %v", req.Bid.Price, placed.Floor),
			Auction: placed.Auction,
		})
		return
	}

	respondOK(w, r, envelope{Status: statusSuccess, Auction: placed.Auction})
}

//
//
//

type auctionClosedRequest struct {
	AuctionID string `json:"auctionId"`
	CallerID  string `json:"callerId"`
}

func (req *auctionClosedRequest) validate() error {
	var merr multiError
	merr.addIf(req.AuctionID == "", ErrNoAuctionID)
	merr.addIf(req.CallerID == "", ErrNoCallerID)
	return merr.yield()
}

func (s *Handler) handleAuctionClosed(w http.ResponseWriter, r *http.Request) {
	var req auctionClosedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode close request: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, r, fmt.Errorf("request invalid: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	a, err := s.service.Close(r.Context(), req.AuctionID, req.CallerID)
	if err != nil {
		respondError(w, r, fmt.Errorf("close auction: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	// Settlement is already durable. Notification delivery is best effort
	// and must not delay or fail the response, so it runs detached from the
	// request context.
	if s.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if _, err := s.notifier.AuctionClosed(ctx, a); err != nil {
				level.Warn(s.logger).Log("auction_id", a.ID, "during", "closure notification", "err", err)
			}
		}()
	}

	respondOK(w, r, envelope{Status: statusSuccess, Auction: a})
}

//
//
//

type auctionClosedNotificationRequest struct {
	AuctionID string         `json:"auctionId"`
	Message   string         `json:"message"`
	Auction   *store.Auction `json:"auction"`
}

func (req *auctionClosedNotificationRequest) validate() error {
	var merr multiError
	merr.addIf(req.Auction == nil, ErrNoAuction)
	merr.addIf(req.AuctionID == "" && (req.Auction == nil || req.Auction.ID == ""), ErrNoAuctionID)
	return merr.yield()
}

func (s *Handler) handleAuctionClosedNotification(w http.ResponseWriter, r *http.Request) {
	var req auctionClosedNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("decode notification: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if err := req.validate(); err != nil {
		respondError(w, r, fmt.Errorf("notification invalid: %w", err), http.StatusBadRequest, s.logger)
		return
	}

	if s.OnNotification != nil {
		s.OnNotification(req.Auction)
	} else {
		level.Info(s.logger).Log("auction_id", req.Auction.ID, "closed", true, "winner", describeWinner(req.Auction.Winner), "message", req.Message)
	}

	respondOK(w, r, envelope{Status: statusSuccess})
}

func describeWinner(b *store.Bid) string {
	if b == nil {
		return "none"
	}
	return fmt.Sprintf("%s@%v", b.Bidder, b.Price)
}

//
//
//

func (s *Handler) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, r, fmt.Errorf("request invalid: %w", ErrNoAuctionID), http.StatusBadRequest, s.logger)
		return
	}

	a, err := s.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, fmt.Errorf("get auction: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	respondOK(w, r, envelope{Status: statusSuccess, Auction: a})
}

func (s *Handler) handleGetAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := s.service.List(r.Context())
	if err != nil {
		respondError(w, r, fmt.Errorf("list auctions: %w", err), http.StatusInternalServerError, s.logger)
		return
	}

	respondOK(w, r, envelope{Status: statusSuccess, Auctions: auctions})
}

//
//
//

type multiError struct {
	merr *multierror.Error
}

func (m *multiError) addIf(b bool, err error) {
	if !b {
		return
	}

	if m.merr == nil {
		m.merr = &multierror.Error{ErrorFormat: joinErrorStrings}
	}

	m.merr = multierror.Append(m.merr, err)
}

func (m *multiError) yield() error {
	if m.merr == nil {
		return nil
	}

	return m.merr.ErrorOrNil()
}

func joinErrorStrings(errs []error) string {
	strs := make([]string, len(errs))
	for i := range errs {
		strs[i] = errs[i].Error()
	}
	return strings.Join(strs, "; ")
}
