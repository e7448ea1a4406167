package api

import (
	"errors"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// googleAuthHandler handles POST /api/auth/google: exchange an
// already-validated profile blob for {token, user}. 403 if the email
// isn't in the staff table or is inactive.
func (s *Server) googleAuthHandler(c *echo.Context) error {
	var req GoogleAuthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	ctx := c.Request().Context()
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusForbidden, "not a recognized staff account")
	}
	if err != nil {
		return mapErr(err)
	}
	if !user.Active {
		return echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	}

	authSession, err := s.auth.CreateAuthSession(ctx, user.UserID)
	if err != nil {
		return mapErr(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{Token: authSession.Token, User: newUserResponse(user)})
}

// meHandler handles GET /api/auth/me.
func (s *Server) meHandler(c *echo.Context) error {
	user := currentUser(c)
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// logoutHandler handles POST /api/auth/logout: invalidate the token that
// authenticated this request.
func (s *Server) logoutHandler(c *echo.Context) error {
	token := bearerToken(c.Request().Header.Get("Authorization"))
	if err := s.auth.DeleteAuthSession(c.Request().Context(), token); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}
