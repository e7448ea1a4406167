package agent

import "strings"

const maxTitleLen = 60

// titleFromMessage bootstraps a session's title from its first user
// message: the message verbatim if it fits in maxTitleLen characters,
// otherwise truncated with a trailing ellipsis. A message that exactly
// fits gets no ellipsis.
func titleFromMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	runes := []rune(trimmed)
	if len(runes) <= maxTitleLen {
		return trimmed
	}
	return string(runes[:maxTitleLen-3]) + "..."
}
