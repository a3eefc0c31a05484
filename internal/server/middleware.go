package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"soc-portal/internal/authgate"
	"soc-portal/internal/platform/rbac"
	"soc-portal/internal/policy/engine"
	"soc-portal/internal/server/respond"
	"soc-portal/internal/session"
)

// RequestLogger logs each request at info level (method, path, status, duration, request_id).
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Tracing wraps each request in a server span named after the method and path.
func Tracing(tracer trace.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				))
			defer span.End()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			span.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))
			if ww.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(ww.Status()))
			}
		})
	}
}

// RequireSession runs the auth gate and stores the caller in the request context.
// Rejections are answered with the gate's status; cookies are cleared when the gate asks for it.
func RequireSession(gate *authgate.Gate, cookies *session.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := gate.CheckRequest(r)
			if err != nil {
				authgate.WriteFailure(w, cookies, err)
				return
			}
			c := session.Read(r)
			caller := &rbac.Caller{
				Identity:    res.Identity,
				Role:        res.Role,
				UserType:    res.UserType,
				SocPortalID: res.SocPortalID,
				Email:       res.Identity.Email,
				EID:         c.EID(),
				SessionID:   c.SessionID(),
			}
			next.ServeHTTP(w, r.WithContext(rbac.WithCaller(r.Context(), caller)))
		})
	}
}

// RequirePolicy denies the request with 403 unless the access policy allows the caller on resource.
// Must run after RequireSession.
func RequirePolicy(eval engine.Evaluator, resource string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := rbac.CallerFrom(r.Context())
			if !ok {
				respond.JSON(w, http.StatusUnauthorized, respond.Envelope{Message: "Authentication required"})
				return
			}
			in := engine.Input{Role: caller.Role, UserType: caller.UserType, Resource: resource}
			if caller.Identity != nil {
				in.StoredRole = caller.Identity.Role
			}
			allowed, err := eval.Allow(r.Context(), in)
			if err != nil {
				logger.Error("policy evaluation failed", zap.String("resource", resource), zap.Error(err))
			}
			if !allowed {
				logger.Warn("access denied",
					zap.String("resource", resource),
					zap.String("soc_portal_id", caller.SocPortalID),
					zap.String("role", caller.Role),
					zap.String("eid", caller.EID))
				respond.JSON(w, http.StatusForbidden, respond.Envelope{Message: "Access denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
