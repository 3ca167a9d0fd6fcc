package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Len(t, secret1, 64) // 32 bytes hex encoded

	secret2, err := GetJWTSecret(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, secret1, secret2)
}

func TestEnsureSettingKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, ok, err := GetSetting(ctx, database, "motd")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := EnsureSetting(ctx, database, "motd", "first")
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = EnsureSetting(ctx, database, "motd", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}
