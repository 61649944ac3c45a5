package authz

import (
	"crypto/ed25519"
	"fmt"
)

// Ed25519Verifier verifies mint proofs signed with the admin's Ed25519 keys.
// Multiple keys are supported so the off-chain service can rotate without
// downtime; KeyID selects the verification key.
type Ed25519Verifier struct {
	keys map[string]ed25519.PublicKey
}

// NewEd25519Verifier constructs a verifier over the given key set.
func NewEd25519Verifier(keys map[string]ed25519.PublicKey) (*Ed25519Verifier, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one verification key is required")
	}
	copied := make(map[string]ed25519.PublicKey, len(keys))
	for keyID, key := range keys {
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("key %q: invalid ed25519 public key size %d", keyID, len(key))
		}
		copied[keyID] = key
	}
	return &Ed25519Verifier{keys: copied}, nil
}

func (v *Ed25519Verifier) Verify(proof Proof, binding Binding) error {
	key, ok := v.keys[proof.KeyID]
	if !ok {
		return fmt.Errorf("unknown key id %q", proof.KeyID)
	}
	if len(proof.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size %d", len(proof.Signature))
	}
	if !ed25519.Verify(key, binding.Payload(proof.Nonce), proof.Signature) {
		return fmt.Errorf("signature does not match binding")
	}
	return nil
}

// InsecureAllowAll accepts every proof without checking the signature. It
// exists for local development against the memory store and must never be
// wired in a deployment that acts as an identity anchor.
type InsecureAllowAll struct{}

func (InsecureAllowAll) Verify(Proof, Binding) error { return nil }
