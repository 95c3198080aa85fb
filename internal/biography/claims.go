package biography

import (
	"context"
	"errors"
	"log/slog"

	"mortality/internal/dates"
	"mortality/internal/wiki"
	"mortality/pkg/platform/sentinel"
)

// ClaimLookup is the slice of the Wikidata client the claims source needs.
type ClaimLookup interface {
	ClaimTime(ctx context.Context, property, entityID string) (string, error)
}

// ClaimsSource reads birth and death facts from structured Wikidata entity
// claims. Tokens pass through the ClaimCache so a subject looked up twice
// costs one upstream round-trip.
type ClaimsSource struct {
	lookup ClaimLookup
	cache  ClaimCache
	log    *slog.Logger
}

func NewClaimsSource(lookup ClaimLookup, cache ClaimCache, log *slog.Logger) *ClaimsSource {
	if cache == nil {
		cache = NewMemoryClaimCache()
	}
	if log == nil {
		log = slog.Default()
	}
	return &ClaimsSource{lookup: lookup, cache: cache, log: log}
}

func (s *ClaimsSource) Name() string { return "wikidata-claims" }

// Facts fetches the P569/P570 claims for the subject's entity. An entity
// that no longer exists upstream yields empty Facts rather than an error;
// the roster row keeps its stored state until someone fixes the ID.
func (s *ClaimsSource) Facts(ctx context.Context, subject Subject) (Facts, error) {
	if subject.EntityID == "" {
		return Facts{}, NewFetchError(CategoryNotFound, s.Name(), "subject has no entity id", nil)
	}

	birth, err := s.claimDate(ctx, wiki.PropertyBirthDate, subject.EntityID)
	if err != nil {
		return Facts{}, err
	}
	death, err := s.claimDate(ctx, wiki.PropertyDeathDate, subject.EntityID)
	if err != nil {
		return Facts{}, err
	}
	return Facts{Birth: birth, Death: death}, nil
}

// claimDate returns the parsed date for one property, nil when the entity
// has no such claim.
func (s *ClaimsSource) claimDate(ctx context.Context, property, entityID string) (*dates.Date, error) {
	token, ok, err := s.cache.Get(ctx, property, entityID)
	if err != nil {
		// A flaky cache must not fail the run; fall through to the API.
		s.log.Warn("claim cache read failed", "property", property, "entity_id", entityID, "error", err)
		ok = false
	}
	if !ok {
		token, err = s.lookup.ClaimTime(ctx, property, entityID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			token = ""
		case errors.Is(err, context.DeadlineExceeded):
			return nil, NewFetchError(CategoryTimeout, s.Name(), "claim lookup timed out", err)
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, NewFetchError(CategoryOutage, s.Name(), "wikidata unavailable", err)
		case err != nil:
			return nil, NewFetchError(CategoryInternal, s.Name(), "claim lookup failed", err)
		}
		// An empty token records a known miss, so absent claims are cached too.
		if cerr := s.cache.Set(ctx, property, entityID, token); cerr != nil {
			s.log.Warn("claim cache write failed", "property", property, "entity_id", entityID, "error", cerr)
		}
	}
	if token == "" {
		return nil, nil
	}

	d, err := dates.ParseEntityTimestamp(token)
	if err != nil {
		// Precision beyond what we model (decade, century) or corrupt data.
		// Treat the fact as absent rather than failing the subject.
		s.log.Warn("unparseable claim time", "property", property, "entity_id", entityID, "token", token)
		return nil, nil
	}
	return &d, nil
}
