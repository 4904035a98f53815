package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
	"github.com/distri-network/distri/internal/security"
)

type signerKey struct{}

// signerFrom returns the verified signer of a request.
func signerFrom(ctx context.Context) domain.Pubkey {
	pk, _ := ctx.Value(signerKey{}).(domain.Pubkey)
	return pk
}

// requireSignature verifies the request signature headers, rejects a
// signature it has already accepted, and stores the signer in the request
// context.
func (s *Server) requireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "bad_request", err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sig := r.Header.Get(security.HeaderSignature)
		signer, ts, err := security.VerifyRequest(r.Method, r.URL.Path, body,
			r.Header.Get(security.HeaderPubkey), sig,
			r.Header.Get(security.HeaderTimestamp))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "bad_signature", err.Error())
			return
		}
		skew := time.Duration(s.clock.Now()-ts) * time.Second
		if skew < 0 {
			skew = -skew
		}
		if skew > s.maxClockSkew {
			writeError(w, http.StatusUnauthorized, "bad_signature",
				fmt.Sprintf("request timestamp %d is %s away from server time", ts, skew))
			return
		}
		// A signature is accepted once; its timestamp expires it from the
		// window before the cache entry does.
		if err := s.replays.Add(sig, struct{}{}, 2*s.maxClockSkew); err != nil {
			writeError(w, http.StatusUnauthorized, "bad_signature", "request already processed")
			return
		}

		ctx := context.WithValue(r.Context(), signerKey{}, signer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimited applies a token bucket per client address. Idle buckets
// expire from the cache.
func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.rateLimit < 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		if !s.limiter(addr).Allow() {
			metrics.APIRateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limiter(addr string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if l, ok := s.limiters.Get(addr); ok {
		s.limiters.Set(addr, l, cache.DefaultExpiration)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Limit(s.rateLimit), s.rateBurst)
	s.limiters.Set(addr, l, cache.DefaultExpiration)
	return l
}

// countRequests records every response by route pattern and status code.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug("request",
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("took", time.Since(started)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
