package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
)

// dispatch wraps a view handler with the running, authentication and
// result-normalisation steps.
func (s *Server) dispatch(v View, fn HandlerFunc) http.Handler {
	requiresAuth := !v.Public

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.host.IsRunning() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		ctx := r.Context()
		ip := RealIP(ctx)
		authenticated := IsAuthenticated(ctx)

		if requiresAuth && !authenticated {
			s.recordFailedAttempt(ctx, ip)
			writeUnauthorized(w, "unauthorised")
			return
		}

		s.logger.Info("serving view",
			"view", v.Name,
			"path", r.URL.Path,
			"remote_addr", addrString(ip),
			"authenticated", authenticated,
		)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		result, err := fn(r, urlParams(r))
		if err != nil {
			s.writeHandlerError(sw, r, v.Name, err)
		} else {
			writeResult(sw, r, v.Name, result)
		}

		if s.metrics != nil {
			s.metrics.RecordRequest(v.Name, r.Method, sw.status, time.Since(start))
		}
	})
}

// recordFailedAttempt counts a rejected request against ip. Counting is off
// when IP banning is disabled.
func (s *Server) recordFailedAttempt(ctx context.Context, ip netip.Addr) {
	if s.bans == nil {
		return
	}
	// the ban must be stored even if the client hangs up
	if _, err := s.bans.RecordFailure(context.WithoutCancel(ctx), ip); err != nil {
		s.logger.Error("recording failed login attempt", "remote_addr", addrString(ip), "error", err)
	}
}

func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, view string, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		code := apiErr.Code
		if code == "" {
			code = http.StatusText(apiErr.Status)
		}
		writeError(w, apiErr.Status, code, apiErr.Message)
		return
	}

	s.logger.Error("view handler failed",
		"view", view,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"error", err,
	)
	writeInternalError(w, "internal server error")
}

func urlParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return params
	}
	for i, key := range rctx.URLParams.Keys {
		if i < len(rctx.URLParams.Values) {
			params[key] = rctx.URLParams.Values[i]
		}
	}
	return params
}
