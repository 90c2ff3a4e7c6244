package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/auth"
	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/util"
	"github.com/bwise1/sosedi/util/tracing"
	"github.com/bwise1/sosedi/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lucsky/cuid"
)

const defaultRequestSource = "unknown"

// RequestTracing handles the request tracing context
func RequestTracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestSource := r.Header.Get(values.HeaderRequestSource)
		if requestSource == "" {
			requestSource = defaultRequestSource
		}

		requestID := r.Header.Get(values.HeaderRequestID)
		if requestID == "" {
			requestID = cuid.New()
		}
		w.Header().Set(values.HeaderRequestID, requestID)

		tracingContext := tracing.Context{
			RequestID:     requestID,
			RequestSource: requestSource,
		}

		ctx = context.WithValue(ctx, values.ContextTracingKey, tracingContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// Metrics records request count and latency per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
		metrics.RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
	})
}

func bearerToken(r *http.Request) string {
	authorization := strings.Split(r.Header.Get("Authorization"), " ")
	if len(authorization) != 2 || authorization[0] != "Bearer" {
		// browsers cannot set headers on websocket upgrades
		return r.URL.Query().Get("token")
	}
	return authorization[1]
}

func (api *API) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeErrorResponse(w, apperr.ErrInvalidCredential, values.NotAuthorised, "not-authorized")
		return auth.Identity{}, false
	}
	id, err := api.Deps.Verifier.Verify(r.Context(), token)
	if err != nil {
		if apperr.KindOf(err) == apperr.ExpiredCredential {
			writeErrorResponse(w, err, values.TokenExpired, "token-expired")
			return auth.Identity{}, false
		}
		writeErrorResponse(w, err, values.NotAuthorised, "invalid-token")
		return auth.Identity{}, false
	}
	return id, true
}

// RequireIdentity admits any caller with a valid token, registered or not.
func (api *API) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := api.authenticate(w, r)
		if !ok {
			return
		}
		ctx := context.WithValue(r.Context(), values.ContextIdentity, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin admits callers whose token maps to a live user profile.
func (api *API) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := api.authenticate(w, r)
		if !ok {
			return
		}

		dbCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := api.Deps.Feed.UserByAuthUID(dbCtx, id.UID)
		if err != nil || user.IsDeleted {
			if err != nil && apperr.KindOf(err) != apperr.NotFound {
				slog.Error("user lookup failed", "uid", id.UID, "error", err)
				writeErrorResponse(w, err, values.Error, "user-lookup-failed")
				return
			}
			writeErrorResponse(w, apperr.ErrNotFound, values.NotAuthorised, "user-not-found")
			return
		}

		ctx := context.WithValue(r.Context(), values.ContextIdentity, id)
		ctx = context.WithValue(ctx, values.ContextProfileKey, user)
		ctx = util.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(values.ContextIdentity).(auth.Identity)
	return id, ok
}

func userFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(values.ContextProfileKey).(model.User)
	return u, ok
}
