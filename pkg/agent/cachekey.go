package agent

import (
	"regexp"
	"strings"
	"time"
)

const (
	shortResponseCacheTTL = 5 * time.Minute
	longResponseCacheTTL  = 24 * time.Hour
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize lowercases, trims, and collapses internal whitespace so
// cosmetically different phrasings of the same question share a cache
// entry. It is idempotent: normalize(normalize(x)) == normalize(x).
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.ToLower(s)
}

// responseCacheKey is the cache key for a chat turn's response: the
// normalized user message scoped by vertical, since the same question can
// have a different answer per business line.
func responseCacheKey(message, vertical string) string {
	return normalize(message) + ":" + vertical
}

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthYearRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)

	// nowSignal matches phrases that pin the question to the current,
	// still-changing period: the answer can't be cached for long because
	// it keeps moving.
	nowSignal = regexp.MustCompile(`(?i)\b(today|right now|currently|as of now|this month)\b`)

	// closedPeriodSignal matches phrases that refer to a period that has
	// already ended ("last month", "previous quarter"): the underlying
	// data is settled, so the answer is safe to cache longer.
	closedPeriodSignal = regexp.MustCompile(`(?i)\b(last|previous)\s+(month|quarter|year)\b`)
)

// detectDates scans text for concrete date-like signals: ISO dates and
// "Month YYYY" are parsed into actual dates.
func detectDates(text string) []time.Time {
	var dates []time.Time
	for _, m := range isoDateRe.FindAllString(text, -1) {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			dates = append(dates, t)
		}
	}
	for _, m := range monthYearRe.FindAllStringSubmatch(text, -1) {
		month := strings.Title(strings.ToLower(m[1])) //nolint:staticcheck // simple ASCII title-case, not locale text
		if t, err := time.Parse("January 2006", month+" "+m[2]); err == nil {
			dates = append(dates, t)
		}
	}
	return dates
}

// classifyTTL implements the response-TTL classifier from §4.6/§8: it
// scans the user's message, not the model's answer, for historical date
// signals. A message pinned to the current period ("today", "this month")
// always gets the conservative 5 min TTL, since the answer changes as the
// period progresses. A message referring to a closed-off period ("last
// month", a month year pair, or an ISO date strictly before the start of
// the current month in IST) is safe to cache for 24h. Anything else, or
// the absence of any recognized signal, defaults to the conservative TTL.
func classifyTTL(userMessage string) time.Duration {
	if nowSignal.MatchString(userMessage) {
		return shortResponseCacheTTL
	}
	if closedPeriodSignal.MatchString(userMessage) {
		return longResponseCacheTTL
	}

	dates := detectDates(userMessage)
	if len(dates) == 0 {
		return shortResponseCacheTTL
	}

	ist := time.FixedZone("IST", 5*3600+30*60)
	now := time.Now().In(ist)
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, ist)
	for _, d := range dates {
		if !d.Before(startOfMonth) {
			return shortResponseCacheTTL
		}
	}
	return longResponseCacheTTL
}
