package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dnt-protocol/dnt-staking-engine/internal/governance"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/metrics"
	"github.com/dnt-protocol/dnt-staking-engine/internal/observability/tracing"
	"github.com/dnt-protocol/dnt-staking-engine/internal/services"
	"github.com/dnt-protocol/dnt-staking-engine/internal/types"
)

const (
	// PrincipalHeader carries the authenticated caller. It is set by the
	// gateway in front of the engine.
	PrincipalHeader = "X-Principal"
	traceHeader     = "X-Request-ID"
)

type Handler struct {
	svc         *services.Service
	governance  *governance.Store
	maxPageSize int64
}

type result struct {
	Data   any `json:"data"`
	status int
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

type handlerFunc func(r *http.Request) (*result, error)

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)
	r.Use(metricsMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, types.NewNotFoundError("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, types.NewErrorWithMsg(http.StatusMethodNotAllowed, types.BadRequest, "method not allowed"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/global-state", registerHandler(h.getGlobalState))
		r.Get("/accounts/{principal}", registerHandler(h.getAccount))
		r.Get("/liquidations", registerHandler(h.getLiquidations))
		r.Get("/governance/updates", registerHandler(h.getGovernanceUpdates))

		r.Post("/stake", registerHandler(h.stake))
		r.Post("/unstake", registerHandler(h.unstake))
		r.Post("/settle", registerHandler(h.settle))
		r.Post("/rewards/distribute", registerHandler(h.distributeRewards))
		r.Post("/risk/evaluate", registerHandler(h.evaluate))
		r.Post("/risk/liquidate-losses", registerHandler(h.liquidateLosses))
		r.Post("/rebalance", registerHandler(h.rebalance))
	})
	return r
}

func registerHandler(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := f(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		status := res.status
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, r, status, res)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *types.Error
	if !errors.As(err, &apiErr) {
		apiErr = types.NewInternalServiceError(err)
	}

	logger := log.Ctx(r.Context()).With().
		Str("path", r.URL.Path).
		Str("errorCode", apiErr.ErrorCode.String()).
		Err(apiErr.Err).
		Logger()
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error().Msg("request failed")
	} else {
		logger.Debug().Msg("request rejected")
	}

	message := apiErr.Error()
	if apiErr.ErrorCode == types.InternalServiceError {
		// internal details stay in the logs
		message = "internal service error"
	}
	writeJSON(w, r, apiErr.StatusCode, errorResponse{
		ErrorCode: apiErr.ErrorCode.String(),
		Message:   message,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(traceHeader); id != "" {
			ctx = tracing.InjectTraceIDWithValue(ctx, id)
		} else {
			ctx = tracing.InjectTraceID(ctx)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		metrics.RecordAPIRequest(time.Since(start), r.Method, route, ww.Status())
	})
}

func principalFromHeader(r *http.Request) (string, error) {
	principal := r.Header.Get(PrincipalHeader)
	if principal == "" {
		return "", types.NewErrorWithMsg(http.StatusUnauthorized, types.BadRequest, "missing "+PrincipalHeader+" header")
	}
	return principal, nil
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return types.NewErrorWithMsg(http.StatusBadRequest, types.BadRequest, "invalid request body: "+err.Error())
	}
	return nil
}

func (h *Handler) parseLimit(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.maxPageSize, nil
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return 0, types.NewInvalidParameterError("limit must be a positive integer")
	}
	return min(limit, h.maxPageSize), nil
}
