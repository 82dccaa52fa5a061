package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"leadhunt-engine/internal/domain"
)

var layouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

var relativeRe = regexp.MustCompile(`^(\d+|an?|one)\s*(min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days|w|week|weeks)\s+ago$`)

// PostedAt returns the posting time in UTC. Unparseable or missing values
// fall back to now, and times in the future are clamped to now.
func PostedAt(raw domain.RawPosting, now time.Time) time.Time {
	now = now.UTC()

	var t time.Time
	switch {
	case raw.PostedAt != nil && !raw.PostedAt.IsZero():
		t = *raw.PostedAt
	default:
		var ok bool
		t, ok = ParseTime(raw.PostedText, now)
		if !ok {
			return now
		}
	}

	t = t.UTC()
	if t.After(now) {
		return now
	}
	return t
}

// ParseTime understands common absolute layouts plus "3 hours ago",
// "yesterday" and "today".
func ParseTime(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	low := strings.ToLower(s)
	low = strings.TrimPrefix(low, "posted ")

	switch low {
	case "just now", "now", "today":
		return now, true
	case "yesterday":
		return now.Add(-24 * time.Hour), true
	}

	if m := relativeRe.FindStringSubmatch(low); m != nil {
		n := 1
		if v, err := strconv.Atoi(m[1]); err == nil {
			n = v
		}
		var unit time.Duration
		switch m[2][0] {
		case 'm':
			unit = time.Minute
		case 'h':
			unit = time.Hour
		case 'd':
			unit = 24 * time.Hour
		case 'w':
			unit = 7 * 24 * time.Hour
		}
		return now.Add(-time.Duration(n) * unit), true
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
