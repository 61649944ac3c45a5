//go:build integration

package authz_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zintarh/wrap-registry/internal/wrap/authz"
	"github.com/zintarh/wrap-registry/pkg/platform/sentinel"
	"github.com/zintarh/wrap-registry/pkg/testutil/containers"
)

func TestRedisNonceStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := authz.NewRedisNonceStore(rc.Client, time.Hour)

	require.NoError(t, store.Consume(ctx, "nonce-1"))

	err := store.Consume(ctx, "nonce-1")
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	require.NoError(t, store.Consume(ctx, "nonce-2"))
}

func TestRedisNonceStore_NoncesExpire(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := authz.NewRedisNonceStore(rc.Client, time.Second)

	require.NoError(t, store.Consume(ctx, "short-lived"))

	assert.Eventually(t, func() bool {
		return store.Consume(ctx, "short-lived") == nil
	}, 5*time.Second, 100*time.Millisecond)
}
