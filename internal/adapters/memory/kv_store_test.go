package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicloop/portal-auth/internal/ports"
)

func TestKeyValue_SetAndGet(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Hour))

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestKeyValue_GetMissing(t *testing.T) {
	kv := NewKeyValue()

	_, err := kv.Get(context.Background(), "missing")
	assert.Equal(t, ports.ErrNotFound, err)
}

func TestKeyValue_Expiry(t *testing.T) {
	now := time.Now()
	kv := NewKeyValueAt(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	now = now.Add(2 * time.Minute)
	_, err := kv.Get(ctx, "k")
	assert.Equal(t, ports.ErrNotFound, err)
}

func TestKeyValue_NonPositiveTTLDeletes(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Hour))
	require.NoError(t, kv.Set(ctx, "k", "v", -24*time.Hour))

	_, err := kv.Get(ctx, "k")
	assert.Equal(t, ports.ErrNotFound, err)
}

func TestKeyValue_Delete(t *testing.T) {
	kv := NewKeyValue()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Hour))
	require.NoError(t, kv.Delete(ctx, "k"))

	_, err := kv.Get(ctx, "k")
	assert.Equal(t, ports.ErrNotFound, err)
}

func TestUnavailable_NeverErrors(t *testing.T) {
	var kv Unavailable
	ctx := context.Background()

	assert.False(t, kv.Available())
	assert.NoError(t, kv.Set(ctx, "k", "v", time.Hour))
	assert.NoError(t, kv.Delete(ctx, "k"))

	_, err := kv.Get(ctx, "k")
	assert.Equal(t, ports.ErrNotFound, err)
}
