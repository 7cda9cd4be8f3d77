package handler

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"auctionhouse/internal/feed"
	"auctionhouse/internal/service"
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	traderSvc *service.TraderService,
	marketSvc *service.MarketService,
	hub *feed.Hub,
	feedBuffer int,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	traderH := NewTraderHandler(traderSvc)
	marketH := NewMarketHandler(marketSvc)
	shoutH := NewShoutHandler(marketSvc)
	txH := NewTransactionHandler(marketSvc)
	streamH := NewStreamHandler(hub, feedBuffer, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Trader routes.
	r.Post("/traders", traderH.Register)
	r.Get("/traders/{trader_id}", traderH.Get)

	// Market routes.
	r.Post("/markets", marketH.Create)
	r.Post("/markets/{market_id}/close", marketH.Close)
	r.Get("/markets/{market_id}/quote", marketH.GetQuote)
	r.Get("/markets/{market_id}/book", marketH.GetBook)
	r.Get("/markets/{market_id}/equilibrium", marketH.GetEquilibrium)
	r.Get("/markets/{market_id}/efficiency", marketH.GetEfficiency)

	// Shout routes.
	r.Post("/markets/{market_id}/shouts", shoutH.Submit)
	r.Delete("/markets/{market_id}/shouts/{shout_id}", shoutH.Withdraw)

	// Settlement routes.
	r.Post("/markets/{market_id}/transactions/{tx_id}/outcome", txH.NotifyOutcome)

	// Event stream.
	r.Get("/ws/events", streamH.Events)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the underlying writer so the websocket upgrade works
// behind the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
