package service

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/zintarh/wrap-registry/internal/wrap/authz"
	"github.com/zintarh/wrap-registry/internal/wrap/events"
	"github.com/zintarh/wrap-registry/internal/wrap/store"
	"github.com/zintarh/wrap-registry/pkg/domain"
	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
	"github.com/zintarh/wrap-registry/pkg/requestcontext"
)

const (
	testRegistryID = "wrap-registry-test"
	testKeyID      = "admin-2024"
	adminAddress   = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"
	userAddress    = "GB3JDWCQJCWMJ3IILWIGDTQJJC5567PGVEVXSCVPEQOTDN64VJBDQBTO"
)

// RegistrySuite drives the service against real in-memory collaborators: the
// store, an Ed25519 gate, and a memory event sink.
type RegistrySuite struct {
	suite.Suite
	service *Service
	store   *store.InMemory
	sink    *events.MemorySink
	private ed25519.PrivateKey
	ctx     context.Context
}

func (s *RegistrySuite) SetupTest() {
	public, private, err := ed25519.GenerateKey(nil)
	s.Require().NoError(err)
	s.private = private

	verifier, err := authz.NewEd25519Verifier(map[string]ed25519.PublicKey{testKeyID: public})
	s.Require().NoError(err)

	logger := slog.New(slog.DiscardHandler)
	s.store = store.NewInMemory()
	s.sink = events.NewMemorySink()
	gate := authz.NewGate(verifier, authz.NewInMemoryNonceStore(time.Hour), logger)
	s.service = New(testRegistryID, s.store, gate, s.sink, WithLogger(logger))
	s.ctx = context.Background()
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) hash(b byte) domain.DataHash {
	var h domain.DataHash
	for i := range h {
		h[i] = b
	}
	return h
}

func (s *RegistrySuite) mintRequest(user string, hashByte byte, archetype, period string) MintRequest {
	req := MintRequest{
		To:        domain.Address(user),
		DataHash:  s.hash(hashByte),
		Archetype: domain.Archetype(archetype),
		Period:    domain.Period(period),
	}
	nonce := uuid.NewString()
	binding := authz.Binding{
		RegistryID: testRegistryID,
		User:       req.To,
		Period:     req.Period,
		DataHash:   req.DataHash,
	}
	req.Proof = authz.Proof{
		KeyID:     testKeyID,
		Nonce:     nonce,
		Signature: ed25519.Sign(s.private, binding.Payload(nonce)),
	}
	return req
}

func (s *RegistrySuite) TestInitializeOnlyOnce() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	err := s.service.Initialize(s.ctx, userAddress)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))

	// The stored admin equals the first supplied value.
	admin, err := s.store.FindAdmin(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.Address(adminAddress), admin)
}

func (s *RegistrySuite) TestAdminBeforeAndAfterInitialize() {
	_, err := s.service.Admin(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))

	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	admin, err := s.service.Admin(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.Address(adminAddress), admin)
}

func (s *RegistrySuite) TestInitializeRejectsEmptyAdmin() {
	err := s.service.Initialize(s.ctx, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RegistrySuite) TestMintBeforeInitialize() {
	_, err := s.service.Mint(s.ctx, s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))

	record, err := s.service.Query(s.ctx, userAddress, "2024-01")
	s.Require().NoError(err)
	s.Nil(record)
	s.Empty(s.sink.Events())
}

// TestMintLifecycle walks the reference scenario: one record per (user,
// period), second mint rejected unconditionally, distinct periods coexist.
func (s *RegistrySuite) TestMintLifecycle() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	minted, err := s.service.Mint(s.ctx, s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01"))
	s.Require().NoError(err)
	s.Require().NotNil(minted)

	record, err := s.service.Query(s.ctx, userAddress, "2024-01")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(strings.Repeat("2a", 32), record.DataHash.String())
	s.Equal(domain.Archetype("soroban_architect"), record.Archetype)

	// Second mint for the same key fails even with a different hash and
	// archetype, and the original record is unchanged.
	_, err = s.service.Mint(s.ctx, s.mintRequest(userAddress, 0x63, "defi_patron", "2024-01"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeWrapAlreadyExists))

	record, err = s.service.Query(s.ctx, userAddress, "2024-01")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(strings.Repeat("2a", 32), record.DataHash.String())
	s.Equal(domain.Archetype("soroban_architect"), record.Archetype)

	// A distinct period coexists with the January record.
	_, err = s.service.Mint(s.ctx, s.mintRequest(userAddress, 0x01, "x", "2024-02"))
	s.Require().NoError(err)

	count, err := s.service.UserCount(s.ctx, userAddress)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *RegistrySuite) TestMintWithoutValidProof() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	req := s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01")
	req.Proof.Signature[0] ^= 0xff

	_, err := s.service.Mint(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// No observable storage mutation and no event.
	record, err := s.service.Query(s.ctx, userAddress, "2024-01")
	s.Require().NoError(err)
	s.Nil(record)
	s.Empty(s.sink.Events())
}

func (s *RegistrySuite) TestMintProofReplayRejected() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	req := s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01")
	_, err := s.service.Mint(s.ctx, req)
	s.Require().NoError(err)

	// Same proof presented again: rejected before the duplicate check can
	// even answer, because the nonce is spent.
	_, err = s.service.Mint(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *RegistrySuite) TestMintTimestampComesFromPlatformClock() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	fixed := time.Date(2024, 1, 31, 23, 59, 58, 500_000_000, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, fixed)

	minted, err := s.service.Mint(ctx, s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01"))
	s.Require().NoError(err)
	s.Equal(fixed.Truncate(time.Second), minted.MintedAt)

	record, err := s.service.Query(s.ctx, userAddress, "2024-01")
	s.Require().NoError(err)
	s.Equal(fixed.Truncate(time.Second), record.MintedAt)
}

func (s *RegistrySuite) TestMintEmitsNotification() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	_, err := s.service.Mint(s.ctx, s.mintRequest(userAddress, 0x2a, "soroban_architect", "2024-01"))
	s.Require().NoError(err)

	emitted := s.sink.Events()
	s.Require().Len(emitted, 1)
	s.Equal(domain.Address(userAddress), emitted[0].User)
	s.Equal(domain.Period("2024-01"), emitted[0].Period)
}

func (s *RegistrySuite) TestQueryAbsenceIsNotAnError() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	record, err := s.service.Query(s.ctx, userAddress, "2099-12")
	s.Require().NoError(err)
	s.Nil(record)
}

func (s *RegistrySuite) TestMintValidation() {
	s.Require().NoError(s.service.Initialize(s.ctx, adminAddress))

	s.Run("missing recipient", func() {
		req := s.mintRequest(userAddress, 0x2a, "arch", "2024-01")
		req.To = ""
		_, err := s.service.Mint(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("zero data hash", func() {
		req := s.mintRequest(userAddress, 0x2a, "arch", "2024-01")
		req.DataHash = domain.DataHash{}
		_, err := s.service.Mint(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing period", func() {
		req := s.mintRequest(userAddress, 0x2a, "arch", "2024-01")
		req.Period = ""
		_, err := s.service.Mint(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
