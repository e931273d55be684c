package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/transport"
)

// RoleAuthorization gates routes on the role of the authenticated user.
type RoleAuthorization struct {
	*transport.BaseHandler
}

func NewRoleAuthorization(logger *slog.Logger) *RoleAuthorization {
	return &RoleAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

func (ra *RoleAuthorization) RequireRole(roles ...internal.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				ra.Logger.Warn("authorization check failed: user not found in context")
				ra.HandleServiceError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
				return
			}

			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			ra.Logger.WarnContext(r.Context(), "access denied: insufficient role",
				"user_id", user.ID,
				"role", user.Role,
				"required", roles)
			if len(roles) == 1 && roles[0] == internal.RoleAdmin {
				ra.HandleServiceError(w, internal.ErrAdminRequired)
				return
			}
			ra.HandleServiceError(w, internal.NewForbiddenError("insufficient role", internal.ErrCodeInvalidRole))
		})
	}
}

func (ra *RoleAuthorization) RequireAdmin() func(http.Handler) http.Handler {
	return ra.RequireRole(internal.RoleAdmin)
}
