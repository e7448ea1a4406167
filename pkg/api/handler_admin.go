package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsy-labs/mcp-gateway/pkg/acl"
	"github.com/tarsy-labs/mcp-gateway/pkg/config"
	"github.com/tarsy-labs/mcp-gateway/pkg/store"
)

// listToolACLsHandler handles GET /api/admin/acl/tools: every tool
// currently mentioned by the effective config (disabled, public, or
// ACL-gated), with its required tags.
func (s *Server) listToolACLsHandler(c *echo.Context) error {
	cfg, err := s.admin.GetConfig(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}

	names := acl.ListToolNames(cfg)
	out := make([]ToolACLResponse, 0, len(names))
	for _, name := range names {
		out = append(out, ToolACLResponse{ToolName: name, RequiredTags: cfg.ToolACLs[name]})
	}
	return c.JSON(http.StatusOK, out)
}

// upsertToolACLHandler handles PUT /api/admin/acl/tools/:name.
func (s *Server) upsertToolACLHandler(c *echo.Context) error {
	var req UpsertToolACLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	name := c.Param("name")
	if err := s.admin.UpsertToolACL(c.Request().Context(), name, req.RequiredTags); err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, ToolACLResponse{ToolName: name, RequiredTags: req.RequiredTags})
}

// deleteToolACLHandler handles DELETE /api/admin/acl/tools/:name.
func (s *Server) deleteToolACLHandler(c *echo.Context) error {
	if err := s.admin.DeleteToolACL(c.Request().Context(), c.Param("name")); err != nil {
		return mapErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// getGlobalACLHandler handles GET /api/admin/acl/global.
func (s *Server) getGlobalACLHandler(c *echo.Context) error {
	cfg, err := s.admin.GetConfig(c.Request().Context())
	if err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// putGlobalACLHandler handles PUT /api/admin/acl/global: bulk replace of
// the effective config document.
func (s *Server) putGlobalACLHandler(c *echo.Context) error {
	var cfg store.AclConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if cfg.DefaultPolicy != "open" && cfg.DefaultPolicy != "deny" {
		return echo.NewHTTPError(http.StatusBadRequest, "default_policy must be \"open\" or \"deny\"")
	}

	if err := s.admin.PutConfig(c.Request().Context(), &cfg); err != nil {
		return mapErr(err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// availableACLsHandler handles GET /api/admin/acl/available-acls: the ACL
// tag catalog comes from an external constant mapping (§4.7), not from
// any live discovery.
func (s *Server) availableACLsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, config.KnownACLTags)
}

// availableToolsHandler handles GET /api/admin/acl/available-tools: tool
// names come from the MCP bridge's live tool index (§4.7), not from the
// ACL config document, so a tool with no ACL entry yet still appears.
func (s *Server) availableToolsHandler(c *echo.Context) error {
	descriptors := s.bridge.GetAllTools()
	out := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, d.Name)
	}
	return c.JSON(http.StatusOK, out)
}
