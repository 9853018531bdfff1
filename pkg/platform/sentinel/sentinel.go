package sentinel

import "errors"

// Sentinel errors for backend facts. Backends return these (optionally
// wrapped) so domain code can translate them without knowing which backend
// implementation is in play.
//
// These represent factual states about directory entries, not validation
// failures:
// - ErrNotFound: no entry at the given DN
// - ErrExists: an entry with the given DN already exists
// - ErrNoSuchAttribute: entry lacks the attribute targeted by a mutation
// - ErrUnavailable: the directory service cannot be reached
//
// For validation failures (bad input, missing fields), use pkg/fielderr.
var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrNoSuchAttribute = errors.New("no such attribute")
	ErrUnavailable     = errors.New("unavailable")
)
