package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_StripsFunctionCallsBlock(t *testing.T) {
	in := "Here is the result.\n<function_calls>\n<invoke name=\"get_sales_funnel\">\n<parameter name=\"vertical\">isprava</parameter>\n</invoke>\n</function_calls>\nDone."
	out := Text(in)
	assert.NotContains(t, out, "function_calls")
	assert.NotContains(t, out, "invoke")
	assert.NotContains(t, out, "parameter")
	assert.Contains(t, out, "Here is the result.")
	assert.Contains(t, out, "Done.")
}

func TestText_StripsFencedXMLBlock(t *testing.T) {
	in := "Before\n```xml\n<foo>bar</foo>\n```\nAfter"
	out := Text(in)
	assert.NotContains(t, out, "<foo>")
	assert.Contains(t, out, "Before")
	assert.Contains(t, out, "After")
}

func TestText_LeavesPlainTextUntouched(t *testing.T) {
	in := "There were 42 leads last month across the isprava vertical."
	assert.Equal(t, in, Text(in))
}

func TestText_Idempotent(t *testing.T) {
	in := "<function_calls><invoke name=\"x\"></invoke></function_calls>plain text"
	once := Text(in)
	twice := Text(once)
	assert.Equal(t, once, twice)
}
