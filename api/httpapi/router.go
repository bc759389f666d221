// Package httpapi serves health, metrics, the market-data websocket and a
// plain-text order entry endpoint.
package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"matchbook/gateway/fix"
	"matchbook/gateway/inbound"
	"matchbook/infra/logging"
	"matchbook/infra/queue"
)

const maxOrderBody = 4 << 10

type Submitter interface {
	Submit(ctx context.Context, line string, clientID uint64) (uint64, error)
}

type Handlers struct {
	// MarketData upgrades /ws requests. Optional.
	MarketData http.Handler
	// Orders backs POST /orders. Optional.
	Orders Submitter
}

func NewRouter(h Handlers, logger *zap.Logger) chi.Router {
	log := logging.OrNop(logger).Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	if h.MarketData != nil {
		r.Get("/ws", h.MarketData.ServeHTTP)
	}
	if h.Orders != nil {
		r.Post("/orders", submitOrder(h.Orders, log))
	}
	return r
}

// submitOrder takes one raw FIX line as the body and the client id from
// the X-Client-Id header. It answers with the journal sequence.
func submitOrder(s Submitter, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := strconv.ParseUint(r.Header.Get("X-Client-Id"), 10, 64)
		if err != nil {
			http.Error(w, "missing or bad X-Client-Id", http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBody))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		seq, err := s.Submit(r.Context(), string(body), clientID)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusAccepted)
			_, _ = io.WriteString(w, strconv.FormatUint(seq, 10))
		case errors.Is(err, queue.ErrClosed):
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		case isBadRequest(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Error("order submit failed", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func isBadRequest(err error) bool {
	for _, target := range []error{
		inbound.ErrEmpty, inbound.ErrUnsupported,
		fix.ErrNoFields, fix.ErrChecksum, fix.ErrMissingTag, fix.ErrBadValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Serve runs handler on lis until ctx is done, then shuts down with a
// short grace period.
func Serve(ctx context.Context, handler http.Handler, lis net.Listener) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errc
		return err
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
