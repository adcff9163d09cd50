package imagecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	cache, err := New(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)

	source := "/mnt/tv/Foo/poster.jpg"

	t.Run("miss before put", func(t *testing.T) {
		_, ok := cache.Get(source)
		assert.False(t, ok)
	})

	t.Run("put then get", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, source, []byte("jpeg bytes")))

		path, ok := cache.Get(source)
		require.True(t, ok)
		assert.Equal(t, ".jpg", filepath.Ext(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg bytes"), data)
	})

	t.Run("distinct sources get distinct entries", func(t *testing.T) {
		other := "/mnt/tv/Bar/poster.jpg"
		require.NoError(t, cache.Put(ctx, other, []byte("other")))

		a, _ := cache.Get(source)
		b, _ := cache.Get(other)
		assert.NotEqual(t, a, b)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, source))
		_, ok := cache.Get(source)
		assert.False(t, ok)

		// second invalidate is a no-op
		assert.NoError(t, cache.Invalidate(ctx, source))
	})
}
