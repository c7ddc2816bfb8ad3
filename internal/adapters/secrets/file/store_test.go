package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billingops/account-rescue-cli/internal/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "billing/api_key", "sk-12345"))

	value, err := store.Get(ctx, "billing/api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", value)
}

func TestStoreGetTrimsWhitespace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "api_key"), []byte("sk-12345\n"), 0o600))

	value, err := store.Get(context.Background(), "api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-12345", value)
}

func TestStoreGetMissingSecret(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStorePutRestrictsPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	require.NoError(t, store.Put(context.Background(), "api_key", "sk-12345"))

	info, err := os.Stat(filepath.Join(root, "api_key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "api_key", "sk-12345"))
	require.NoError(t, store.Delete(ctx, "api_key"))
	require.NoError(t, store.Delete(ctx, "api_key"))

	_, err := store.Get(ctx, "api_key")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "  ", "../outside", "/etc/passwd", "."} {
		_, err := store.Get(ctx, key)
		assert.Error(t, err, "key %q must be rejected", key)
	}
}

func TestStoreHonorsCancellation(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Put(ctx, "api_key", "v"), context.Canceled)
	_, err := store.Get(ctx, "api_key")
	require.ErrorIs(t, err, context.Canceled)
}
