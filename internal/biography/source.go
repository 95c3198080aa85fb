// Package biography fetches raw birth/death facts for a tracked person from
// one of two upstream shapes: structured Wikidata entity claims, or the
// rendered infobox of the person's Wikipedia page. Both are normalized into
// the same Facts value so the reconciliation engine never cares which
// variant produced them.
package biography

import (
	"context"

	"mortality/internal/dates"
)

// Subject identifies who to look up. EntityID addresses the structured
// source, PageTitle the rendered one; a fully-populated roster row carries
// both.
type Subject struct {
	PageTitle string
	EntityID  string
}

// Facts are the raw biographical findings for one subject. A nil field means
// the source has no such fact, an ordinary outcome rather than an error. A death
// date with no birth date is a known upstream data-quality wart and must be
// passed through, not rejected.
type Facts struct {
	Birth *dates.Date
	Death *dates.Date
}

// Source is the capability both upstream variants implement.
type Source interface {
	// Name labels the source in logs and metrics.
	Name() string

	// Facts returns whatever birth/death facts the source has for the
	// subject. Per-field absence is reported through nil Facts fields;
	// errors are reserved for the subject being unusable (*FetchError with
	// CategoryNotFound) or the source itself failing.
	Facts(ctx context.Context, subject Subject) (Facts, error)
}
