// Package authz implements the registry's authorization gate.
//
// A mint invocation carries a Proof: a single-use nonce plus a signature over
// the exact parameters of the call. Verification has two substitutable parts:
//
//   - a Verifier checks the signature binds the proof to {registry instance,
//     target user, period, data hash, nonce}, so a proof can never be replayed
//     against another registry, user, period, or payload
//   - a NonceStore consumes the nonce, so even an identical invocation cannot
//     present the same proof twice
//
// The gate fails closed: any verification or nonce failure surfaces as an
// unauthorized domain error and the calling operation must abort.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
	"github.com/zintarh/wrap-registry/pkg/domain"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
	"github.com/zintarh/wrap-registry/pkg/requestcontext"
)

// Proof is the authorization evidence presented with a mint invocation.
type Proof struct {
	// KeyID selects the admin verification key.
	KeyID string
	// Nonce is single-use; reuse fails regardless of signature validity.
	Nonce string
	// Signature covers the canonical binding payload, nonce included.
	Signature []byte
}

// Binding is the parameter set a proof must commit to. RegistryID scopes the
// proof to one registry instance; the remaining fields scope it to one mint.
type Binding struct {
	RegistryID string
	User       domain.Address
	Period     domain.Period
	DataHash   domain.DataHash
}

// Payload renders the canonical byte string a proof signs. Fields are
// newline-delimited in a fixed order; the nonce is part of the signed payload
// so it cannot be swapped to launder an old signature.
func (b Binding) Payload(nonce string) []byte {
	return fmt.Appendf(nil, "wrap-registry.mint.v1\n%s\n%s\n%s\n%s\n%s",
		b.RegistryID, b.User, b.Period, b.DataHash, nonce)
}

// Verifier checks that a proof's signature commits to the given binding.
// Implementations must be pure: no state, no side effects, so schemes can be
// substituted without touching replay handling.
type Verifier interface {
	Verify(proof Proof, binding Binding) error
}

// NonceStore consumes single-use nonces. Consume returns
// sentinel.ErrAlreadyUsed when the nonce has been presented before.
type NonceStore interface {
	Consume(ctx context.Context, nonce string) error
}

// Gate rejects mutating calls that lack a valid, invocation-scoped admin
// authorization.
type Gate struct {
	verifier Verifier
	nonces   NonceStore
	logger   *slog.Logger
}

// NewGate builds a gate from a verifier and a nonce store.
func NewGate(verifier Verifier, nonces NonceStore, logger *slog.Logger) *Gate {
	return &Gate{verifier: verifier, nonces: nonces, logger: logger}
}

// RequireAdminAuthorization verifies the proof against the binding and burns
// its nonce. The signature is checked first so malformed requests cannot
// consume nonces.
func (g *Gate) RequireAdminAuthorization(ctx context.Context, proof Proof, binding Binding) error {
	if proof.Nonce == "" || len(proof.Signature) == 0 {
		return dErrors.New(dErrors.CodeUnauthorized, "authorization proof is required")
	}

	if err := g.verifier.Verify(proof, binding); err != nil {
		g.logger.WarnContext(ctx, "mint proof verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"key_id", proof.KeyID,
			"user", binding.User.String(),
			"period", binding.Period.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid authorization proof")
	}

	if err := g.nonces.Consume(ctx, proof.Nonce); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			g.logger.WarnContext(ctx, "mint proof replayed",
				"request_id", requestcontext.RequestID(ctx),
				"nonce", proof.Nonce,
			)
			return dErrors.New(dErrors.CodeUnauthorized, "authorization proof already used")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "nonce store unavailable")
	}

	return nil
}
