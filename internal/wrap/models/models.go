// Package models holds the registry's persistent shapes.
package models

import (
	"time"

	"github.com/zintarh/wrap-registry/pkg/domain"
)

// WrapRecord is one immutable, non-transferable attestation. Records are
// created once at mint time and never updated or deleted; the store API
// exposes no mutation beyond the initial insert.
type WrapRecord struct {
	// MintedAt is the platform clock reading at mint time, never a
	// caller-supplied value.
	MintedAt  time.Time
	DataHash  domain.DataHash
	Archetype domain.Archetype
}

// Key addresses a wrap record. Uniqueness of (User, Period) is the central
// invariant of the registry.
type Key struct {
	User   domain.Address
	Period domain.Period
}
