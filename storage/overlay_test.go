package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverlayBuffersWrites(t *testing.T) {
	base := NewMemDB()
	overlay := NewOverlay(base)

	require.NoError(t, overlay.Put([]byte("k"), []byte("v")))

	value, err := overlay.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	// Nothing reaches the base before Commit.
	_, err = base.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, overlay.Commit())

	value, err = base.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func TestOverlayReadsFallThrough(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k"), []byte("base")))

	overlay := NewOverlay(base)

	value, err := overlay.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), value)

	has, err := overlay.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)

	// An overlay write shadows the base value.
	require.NoError(t, overlay.Put([]byte("k"), []byte("new")))
	value, err = overlay.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("new"), value)
}

func TestOverlayDeleteMasksBase(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k"), []byte("base")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Delete([]byte("k")))

	_, err := overlay.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)

	has, err := overlay.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)

	// The base still holds the value until Commit.
	value, err := base.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), value)

	require.NoError(t, overlay.Commit())
	_, err = base.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayPutAfterDelete(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("k"), []byte("base")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Delete([]byte("k")))
	require.NoError(t, overlay.Put([]byte("k"), []byte("revived")))

	value, err := overlay.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("revived"), value)

	require.NoError(t, overlay.Commit())
	value, err = base.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("revived"), value)
}

func TestDiscardedOverlayLeavesBaseUntouched(t *testing.T) {
	base := NewMemDB()
	require.NoError(t, base.Put([]byte("keep"), []byte("v")))

	overlay := NewOverlay(base)
	require.NoError(t, overlay.Put([]byte("new"), []byte("v")))
	require.NoError(t, overlay.Delete([]byte("keep")))

	// The overlay is never committed: the base sees none of it.
	value, err := base.Get([]byte("keep"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	_, err = base.Get([]byte("new"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayCommitResetsBuffers(t *testing.T) {
	base := NewMemDB()
	overlay := NewOverlay(base)

	require.NoError(t, overlay.Put([]byte("k"), []byte("v")))
	require.NoError(t, overlay.Commit())

	// A second commit replays nothing.
	require.NoError(t, base.Delete([]byte("k")))
	require.NoError(t, overlay.Commit())
	_, err := base.Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
}
