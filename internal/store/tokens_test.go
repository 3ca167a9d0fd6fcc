package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = IsTokenRevoked(ctx, database, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = IsTokenRevoked(ctx, database, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked, "different jti must not be revoked")
}

func TestRevokeTokenIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)))
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, RevokeToken(ctx, database, "old", now.Add(-time.Hour)))
	require.NoError(t, RevokeToken(ctx, database, "live", now.Add(time.Hour)))

	n, err := PurgeRevokedTokens(ctx, database, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := IsTokenRevoked(ctx, database, "live")
	require.NoError(t, err)
	assert.True(t, revoked)
}
