package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldcrew/mobsched/pkg/composables"
	"github.com/fieldcrew/mobsched/pkg/constants"
	"github.com/fieldcrew/mobsched/pkg/httpapi"
)

// Provide stores value in the request context under key.
func Provide(key constants.ContextKey, value any) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ProvidePool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pool == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// WithTenant resolves the tenant from header, falling back to fallback.
// Requests with a malformed header or no tenant at all are rejected with 400.
func WithTenant(header string, fallback uuid.UUID) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := fallback
			if raw := strings.TrimSpace(r.Header.Get(header)); raw != "" {
				parsed, err := uuid.Parse(raw)
				if err != nil {
					_ = httpapi.WriteError(w, http.StatusBadRequest, composables.UseRequestID(r.Context()), "TENANT_INVALID", "invalid tenant id")
					return
				}
				tenantID = parsed
			}
			if tenantID == uuid.Nil {
				_ = httpapi.WriteError(w, http.StatusBadRequest, composables.UseRequestID(r.Context()), "TENANT_REQUIRED", "tenant id is required")
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
		})
	}
}
