package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/breaker"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// mapErr maps a domain error to an HTTP error per §7's taxonomy. Internal
// error detail is logged, never returned to the client.
func mapErr(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, acl.ErrDenied):
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	case errors.Is(err, breaker.ErrCircuitOpen):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("api: unexpected error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
