package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/zintarh/wrap-registry/internal/wrap/service/mocks"
	dErrors "github.com/zintarh/wrap-registry/pkg/domain-errors"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
)

// Mock-based tests cover failure propagation the in-memory collaborators
// cannot produce: infrastructure errors from the store and the event channel.

func newMockedService(t *testing.T) (*Service, *mocks.MockStore, *mocks.MockGate, *mocks.MockEventPublisher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockStore(ctrl)
	mockGate := mocks.NewMockGate(ctrl)
	mockEvents := mocks.NewMockEventPublisher(ctrl)
	svc := New(testRegistryID, mockStore, mockGate, mockEvents,
		WithLogger(slog.New(slog.DiscardHandler)))
	return svc, mockStore, mockGate, mockEvents
}

func TestMint_StoreFailureSurfacesAsInternal(t *testing.T) {
	svc, mockStore, _, _ := newMockedService(t)
	ctx := context.Background()

	mockStore.EXPECT().HasAdmin(gomock.Any()).Return(false, errors.New("connection reset"))

	_, err := svc.Mint(ctx, validMintRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestMint_EventStagingFailureAbortsMint(t *testing.T) {
	svc, mockStore, mockGate, mockEvents := newMockedService(t)
	ctx := context.Background()

	mockStore.EXPECT().HasAdmin(gomock.Any()).Return(true, nil)
	mockGate.EXPECT().RequireAdminAuthorization(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mockStore.EXPECT().FindRecord(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("absent: %w", sentinel.ErrNotFound))
	mockStore.EXPECT().PutRecord(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mockEvents.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("outbox insert failed"))

	_, err := svc.Mint(ctx, validMintRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestMint_GateErrorPropagatesUnchanged(t *testing.T) {
	svc, mockStore, mockGate, _ := newMockedService(t)
	ctx := context.Background()

	mockStore.EXPECT().HasAdmin(gomock.Any()).Return(true, nil)
	mockGate.EXPECT().RequireAdminAuthorization(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeUnauthorized, "invalid authorization proof"))

	_, err := svc.Mint(ctx, validMintRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestMint_RacingDuplicateMapsToWrapAlreadyExists(t *testing.T) {
	svc, mockStore, mockGate, _ := newMockedService(t)
	ctx := context.Background()

	// The pre-check sees no record but the insert loses a race: the store's
	// conflict answer still maps to wrap_already_exists.
	mockStore.EXPECT().HasAdmin(gomock.Any()).Return(true, nil)
	mockGate.EXPECT().RequireAdminAuthorization(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	mockStore.EXPECT().FindRecord(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("absent: %w", sentinel.ErrNotFound))
	mockStore.EXPECT().PutRecord(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("duplicate key: %w", sentinel.ErrConflict))

	_, err := svc.Mint(ctx, validMintRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWrapAlreadyExists))
}

func TestUserCount_StoreFailure(t *testing.T) {
	svc, mockStore, _, _ := newMockedService(t)
	ctx := context.Background()

	mockStore.EXPECT().CountByUser(gomock.Any(), gomock.Any()).Return(0, errors.New("timeout"))

	_, err := svc.UserCount(ctx, userAddress)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func validMintRequest() MintRequest {
	var req MintRequest
	req.To = userAddress
	req.Period = "2024-01"
	req.Archetype = "soroban_architect"
	for i := range req.DataHash {
		req.DataHash[i] = 0x2a
	}
	req.Proof.KeyID = testKeyID
	req.Proof.Nonce = "nonce"
	req.Proof.Signature = []byte{1}
	return req
}
