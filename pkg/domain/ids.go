// Package domain defines the typed identifiers and value kinds shared across
// the registry. Parsing happens once at trust boundaries; everything past a
// handler works with these types, never raw strings.
package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
)

// Address identifies a user or admin account. The registry accepts Stellar
// strkey account IDs: 56 characters, 'G' prefix, base32 alphabet.
type Address string

const addressLen = 56

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// ParseAddress validates the strkey shape of an account address.
// It does not verify the embedded checksum; the upstream platform already
// rejects malformed keys, this guards against obviously bad input.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != addressLen {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("address must be %d characters", addressLen))
	}
	if raw[0] != 'G' {
		return "", dErrors.New(dErrors.CodeValidation, "address must start with G")
	}
	for _, c := range raw {
		if !strings.ContainsRune(base32Alphabet, c) {
			return "", dErrors.New(dErrors.CodeValidation, "address contains invalid characters")
		}
	}
	return Address(raw), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// Symbol is a short symbolic label: periods and archetypes. Mirrors the
// platform symbol limit of 32 characters over [A-Za-z0-9_-].
type Symbol string

const maxSymbolLen = 32

// ParseSymbol validates a symbolic label against the platform limits.
func ParseSymbol(raw string) (Symbol, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "symbol must not be empty")
	}
	if len(raw) > maxSymbolLen {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("symbol exceeds %d characters", maxSymbolLen))
	}
	for _, c := range raw {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return "", dErrors.New(dErrors.CodeValidation, "symbol contains invalid characters")
		}
	}
	return Symbol(raw), nil
}

func (s Symbol) String() string { return string(s) }

// Period is the time-bucket component of a registry key, e.g. "2024-01".
type Period = Symbol

// ParsePeriod validates a period identifier.
func ParsePeriod(raw string) (Period, error) { return ParseSymbol(raw) }

// Archetype is the persona label attached to a wrap record.
type Archetype = Symbol

// ParseArchetype validates an archetype label.
func ParseArchetype(raw string) (Archetype, error) { return ParseSymbol(raw) }

// DataHash is the 32-byte content digest anchoring off-chain data integrity.
type DataHash [32]byte

// ParseDataHash decodes a 64-character hex digest.
func ParseDataHash(raw string) (DataHash, error) {
	var h DataHash
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return h, dErrors.New(dErrors.CodeValidation, "data hash must be hex encoded")
	}
	if len(decoded) != len(h) {
		return h, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("data hash must be %d bytes", len(h)))
	}
	copy(h[:], decoded)
	return h, nil
}

func (h DataHash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether the hash is all zero bytes. A zero digest is never a
// valid content hash, so it doubles as the unset marker.
func (h DataHash) IsZero() bool { return h == DataHash{} }
