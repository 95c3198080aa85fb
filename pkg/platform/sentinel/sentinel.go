package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream clients
// return these (optionally wrapped) so the reconciliation engine can branch
// on the fact without knowing which layer produced it.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record/entity/page does not exist upstream or in a store
// - ErrUnavailable: resource temporarily unreachable (worth retrying)
// - ErrInvalidState: resource exists but is unusable for the operation
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
