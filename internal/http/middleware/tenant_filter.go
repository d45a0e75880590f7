package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/auth"
	"go.uber.org/zap"
)

// TenantFilterMiddleware sets the effective tenant scope for the request.
// Company users are always pinned to their own company regardless of what
// they ask for; platform admins may pick a company with ?companyId= or see
// everything when they don't.
type TenantFilterMiddleware struct {
	logger *zap.Logger
}

func NewTenantFilterMiddleware(logger *zap.Logger) *TenantFilterMiddleware {
	return &TenantFilterMiddleware{
		logger: logger,
	}
}

// Filter is the middleware handler that sets the tenant filter in context
func (m *TenantFilterMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			// Auth middleware rejects unauthenticated requests before this
			next.ServeHTTP(w, r)
			return
		}

		var filter *auth.TenantFilter

		if requested := r.URL.Query().Get("companyId"); requested != "" && userCtx.IsPlatformAdmin() {
			companyID, err := uuid.Parse(requested)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success":false,"error":{"code":"validation_error","message":"Invalid companyId parameter"}}`))
				return
			}
			filter = &auth.TenantFilter{
				CompanyID:        &companyID,
				RequestedByAdmin: true,
			}
		} else if userCtx.IsPlatformAdmin() {
			// Unscoped admin sees all tenants
			filter = &auth.TenantFilter{CompanyID: userCtx.CompanyID}
		} else {
			if userCtx.CompanyID == nil {
				m.logger.Warn("authenticated user has no company scope",
					zap.String("user_id", userCtx.UserID.String()),
				)
			}
			filter = &auth.TenantFilter{CompanyID: userCtx.CompanyID}
		}

		ctx := auth.WithTenantFilter(r.Context(), filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
