package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"peerbid/auction"
	"peerbid/store"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	statusSuccess    = "success"
	statusFail       = "fail"
	statusError      = "error"
	statusRegistered = "registered"
)

// envelope is the uniform response shape for every RPC.
type envelope struct {
	Status   string           `json:"status"`
	Message  string           `json:"message,omitempty"`
	Auction  *store.Auction   `json:"auction,omitempty"`
	Auctions []*store.Auction `json:"auctions,omitempty"`
}

func respondOK(w http.ResponseWriter, r *http.Request, response any) {
	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(response) // nothing to do about a failed write here
}

func respondError(w http.ResponseWriter, r *http.Request, err error, fallbackCode int, logger log.Logger) {
	code, trueError := classifyError(err, fallbackCode)

	if trueError {
		level.Error(logger).Log("remote_addr", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "err", err, "code", code)
	} else {
		level.Debug(logger).Log("remote_addr", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "err", err, "code", code)
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(envelope{
		Status:  statusError,
		Message: err.Error(),
	})
}

func classifyError(err error, fallback int) (int, bool) {
	switch {
	case err == nil:
		return http.StatusOK, false
	case errors.Is(err, auction.ErrInvalidArgument):
		return http.StatusBadRequest, true
	case errors.Is(err, auction.ErrUnauthorized):
		return http.StatusForbidden, true
	case errors.Is(err, auction.ErrAlreadyExists):
		return http.StatusConflict, false
	case errors.Is(err, auction.ErrNoBids):
		return http.StatusPreconditionFailed, false
	case errors.Is(err, auction.ErrAlreadyClosed):
		return http.StatusGone, false
	case errors.Is(err, auction.ErrAuctionClosed):
		return http.StatusGone, false
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, true
	default:
		return fallback, true
	}
}
