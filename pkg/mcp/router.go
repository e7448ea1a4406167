package mcp

import "regexp"

// toolNameRegex matches the identifier shape a tool name must have to be
// registered in the bridge's global tool_to_server index. Tool names are
// globally unique across every connected server — never server-prefixed —
// so a malformed or collision-prone name is rejected at registration time
// rather than routed incorrectly later.
var toolNameRegex = regexp.MustCompile(`^[\w][\w-]*$`)

// validToolName reports whether name is well-formed for the global index.
func validToolName(name string) bool {
	return toolNameRegex.MatchString(name)
}
