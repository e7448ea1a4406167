// Package sanitize strips cosmetic artifacts that some LLM responses embed
// in their text output — stray tool-call-like XML the model echoes back as
// prose — before the text is persisted or shown to a user. It never touches
// the structured tool_use/tool_result blocks the agent loop itself manages;
// those are parsed separately from the model's native tool-call API.
package sanitize

import "regexp"

// compiledPattern mirrors the teacher's masking.CompiledPattern idiom: a
// named, pre-compiled regex paired with its replacement.
type compiledPattern struct {
	name    string
	regex   *regexp.Regexp
	replace string
}

var patterns = []compiledPattern{
	{
		name:    "function_calls_block",
		regex:   regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`),
		replace: "",
	},
	{
		name:    "invoke_block",
		regex:   regexp.MustCompile(`(?s)<invoke[^>]*>.*?</invoke>`),
		replace: "",
	},
	{
		name:    "parameter_block",
		regex:   regexp.MustCompile(`(?s)<parameter[^>]*>.*?</parameter>`),
		replace: "",
	},
	{
		name:    "fenced_xml_block",
		regex:   regexp.MustCompile("(?s)```xml.*?```"),
		replace: "",
	},
}

// Text removes function_calls/invoke/parameter XML and fenced xml blocks
// from assistant-facing text. Purely cosmetic: callers must apply this only
// to the text persisted/returned as the assistant message, never to the
// structured tool-use blocks parsed from the model's native API response.
func Text(s string) string {
	for _, p := range patterns {
		s = p.regex.ReplaceAllString(s, p.replace)
	}
	return s
}
