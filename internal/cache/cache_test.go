package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileCacheSetGet(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set("k1", []byte("hello"), time.Minute))

	got, err := c.Get("k1")
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestFileCacheExpiry(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	_ = c.Set("k1", []byte("x"), -time.Second)

	_, err := c.Get("k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileCacheMiss(t *testing.T) {
	dir := t.TempDir()
	c, _ := NewFileCache(dir)
	_, err := c.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}
