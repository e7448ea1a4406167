package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsy-labs/mcp-gateway/pkg/ratelimit"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

const userContextKey = "user"

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// requireAuth resolves the bearer token into a store.User, rejecting the
// request with 401 when the token is missing, unknown, expired, or the
// user behind it is inactive. A valid check slides the session's 24h TTL
// forward (§3, boundary behavior: "a validation within the 24h extends
// expires_at").
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		ctx := c.Request().Context()
		authSession, err := s.auth.GetAuthSession(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if err != nil {
			return mapErr(err)
		}

		user, err := s.users.GetUserByID(ctx, authSession.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if err != nil {
			return mapErr(err)
		}
		if !user.Active {
			return echo.NewHTTPError(http.StatusUnauthorized, "account deactivated")
		}

		_ = s.auth.TouchAuthSession(ctx, token)

		c.Set(userContextKey, user)
		return next(c)
	}
}

// requireAdmin must run after requireAuth; it rejects non-admin callers
// with 403 before the handler is reached.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		user := currentUser(c)
		if user == nil || !user.Admin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}

// overallRateLimit enforces the 60 req/min overall budget (§5, §8
// scenario 6), keyed by the authenticated user's email or the client IP
// for unauthenticated requests.
func (s *Server) overallRateLimit() echo.MiddlewareFunc {
	return s.rateLimit(func(c *echo.Context) (ratelimit.Result, error) {
		return s.limiter.CheckOverall(c.Request().Context(), rateLimitKey(c))
	})
}

// chatRateLimit enforces the 20 req/min budget scoped to the two chat
// endpoints, on top of the overall limiter already applied to the group.
func (s *Server) chatRateLimit() echo.MiddlewareFunc {
	return s.rateLimit(func(c *echo.Context) (ratelimit.Result, error) {
		return s.limiter.CheckChat(c.Request().Context(), rateLimitKey(c))
	})
}

func (s *Server) rateLimit(check func(c *echo.Context) (ratelimit.Result, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			if !s.rateLimitEnabled || s.limiter == nil {
				return next(c)
			}

			res, err := check(c)
			if err != nil {
				return mapErr(err)
			}

			h := c.Response().Header()
			h.Set("RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			h.Set("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("RateLimit-Reset", strconv.FormatInt(res.Reset, 10))

			if !res.Allowed {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// rateLimitKey identifies the caller for rate-limiting purposes: the
// authenticated user's email, or the client IP when unauthenticated.
func rateLimitKey(c *echo.Context) string {
	if user := currentUser(c); user != nil {
		return user.Email
	}
	return c.RealIP()
}

// currentUser reads the *store.User requireAuth attached to the request
// context, or nil if requireAuth has not run (or the route is public).
func currentUser(c *echo.Context) *store.User {
	v := c.Get(userContextKey)
	if v == nil {
		return nil
	}
	u, _ := v.(*store.User)
	return u
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
