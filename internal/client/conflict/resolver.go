// Package conflict classifies save outcomes by comparing the version a write
// was based on with the version reported by the store.
package conflict

import (
	"github.com/iudanet/fieldsync/internal/models"
)

// Kind is the classification of a save outcome.
type Kind int

const (
	// Clean: the store confirmed exactly the version the write assumed.
	Clean Kind = iota
	// Stale: the store reported a different version.
	Stale
	// Unknown: the store reported no version. Handled as a conflict.
	Unknown
)

func (k Kind) String() string {
	switch k {
	case Clean:
		return "clean"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Outcome is the result of Resolve. Token is set for Stale and Unknown.
type Outcome struct {
	Token *models.ConflictToken
	Kind  Kind
}

// IsConflict reports whether the outcome must be surfaced as a conflict.
func (o Outcome) IsConflict() bool {
	return o.Kind != Clean
}

// Resolver compares version tokens. It keeps no state.
type Resolver struct{}

// NewResolver creates a resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve compares versionAtSubmit with the version observed by the store.
// Only an exact match is clean; a missing version is never treated as a match.
func (r *Resolver) Resolve(versionAtSubmit int64, observed *int64) Outcome {
	if observed == nil {
		return Outcome{
			Kind:  Unknown,
			Token: &models.ConflictToken{Expected: versionAtSubmit},
		}
	}

	if *observed == versionAtSubmit {
		return Outcome{Kind: Clean}
	}

	v := *observed
	return Outcome{
		Kind:  Stale,
		Token: &models.ConflictToken{Expected: versionAtSubmit, Observed: &v},
	}
}
