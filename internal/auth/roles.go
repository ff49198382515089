package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/metricas-service/internal/domain"
	apperrors "github.com/spec-kit/metricas-service/pkg/util"
)

// RequireRole ensures the authenticated caller holds exactly the given
// role. It must run after Authenticate so that "not authenticated" and
// "authenticated with the wrong role" stay distinguishable failures.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if claims.Role != role {
			return apperrors.NewForbidden("role " + string(role) + " required")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller holds one of the allowed roles.
// With no arguments it only checks that the caller is authenticated.
func RequireAnyRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[claims.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
