package config

// KnownACLTags is the fixed catalog of ACL tags the admin UI offers when
// building a tool's required-tag list or the superuser set. Unlike
// tool names (discovered live from the MCP bridge), the tag vocabulary
// is an operational constant: new tags are a deploy, not a discovery.
var KnownACLTags = []string{
	"sales_admin",
	"support_admin",
	"ops_admin",
	"finance_admin",
}
