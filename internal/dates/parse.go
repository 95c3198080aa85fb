package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrFormat reports an entity timestamp whose shape does not match the
// expected token format. Callers treat it as "field unusable", not as a
// failure of the containing record.
var ErrFormat = errors.New("malformed date token")

// entityTimestamp matches Wikidata-style time tokens such as
// "+1952-03-11T00:00:00Z". Partial dates use 00 for the unknown month/day.
var entityTimestamp = regexp.MustCompile(`^[+-]?(\d{4})-(\d{2})-(\d{2})T\d{2}:\d{2}:\d{2}Z$`)

// ParseEntityTimestamp normalizes a structured-source time token into a Date.
// A 00 month and day yields year precision, a 00 day alone yields year-month
// precision, anything else is a full date. The leading sign (astronomical
// year numbering) is stripped; BCE dates are out of scope for a roster of
// living people.
func ParseEntityTimestamp(token string) (Date, error) {
	m := entityTimestamp.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return Date{}, fmt.Errorf("%w: %q", ErrFormat, token)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	switch {
	case month == 0 && day == 0:
		return NewYear(year), nil
	case day == 0:
		if month < 1 || month > 12 {
			return Date{}, fmt.Errorf("%w: month %02d in %q", ErrFormat, month, token)
		}
		return NewMonth(year, time.Month(month)), nil
	default:
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return Date{}, fmt.Errorf("%w: %q", ErrFormat, token)
		}
		return New(year, time.Month(month), day), nil
	}
}

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// datePhrase matches "1 December 1986" and "June 8, 1977" style phrases
// embedded in biographical prose. The day is optional on either side of the
// month name.
var datePhrase = regexp.MustCompile(`(?:(\d{1,2}) )?(January|February|March|April|May|June|July|August|September|October|November|December)(?: (\d{1,2}),)? (\d{4})`)

// ExtractPhrase locates the first date phrase in free text and returns it as
// a Date. The second return value is false when no phrase is found; that is a
// normal "field absent" outcome, never an error.
//
// Phrases preceded by a marriage marker ("(m." or the word "married", as
// rendered in spouse infobox fields like "Jane Doe (m. 1996)") are skipped.
// This is a heuristic tuned to observed Wikipedia phrasing, not a general
// parser.
func ExtractPhrase(text string) (Date, bool) {
	for _, idx := range datePhrase.FindAllStringSubmatchIndex(text, -1) {
		if marriagePhrase(text, idx[0]) {
			continue
		}
		m := submatches(text, idx)
		name := strings.ToLower(m[2])
		month, ok := monthsByName[name]
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[4])

		// The day may precede the month ("1 December 1986") or follow it
		// ("June 8, 1977"); take whichever was present.
		dayStr := m[1]
		if dayStr == "" {
			dayStr = m[3]
		}
		if dayStr == "" {
			return NewMonth(year, month), true
		}
		day, _ := strconv.Atoi(dayStr)
		if day < 1 || day > 31 {
			continue
		}
		return New(year, month, day), true
	}
	return Date{}, false
}

// marriageWindow bounds how far back from a date phrase a marriage marker
// still disambiguates it.
const marriageWindow = 16

func marriagePhrase(text string, start int) bool {
	from := start - marriageWindow
	if from < 0 {
		from = 0
	}
	prefix := strings.ToLower(text[from:start])
	return strings.Contains(prefix, "(m.") || strings.Contains(prefix, "married")
}

func submatches(text string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = text[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}
