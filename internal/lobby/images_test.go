package lobby

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrAssignImageBindsOnce(t *testing.T) {
	lib := newFakeLibrary(t, "cat.png", "dog.png")
	rec := &recordingGateway{}
	s := NewStore(WithLogger(quietLogger()), WithImageProvider(lib), WithGateway(rec))
	ctx := context.Background()
	l, err := s.CreateLobby(ctx)
	require.NoError(t, err)

	first, err := s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", first.ID)
	assert.Equal(t, "/images/cat.png", first.URL)
	assert.EqualValues(t, len("img:cat.png"), first.SizeBytes)

	// Reused, not re-randomized.
	again, err := s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, *first, *again)

	got, err := s.GetLobby(l.Code)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", got.SelectedImageID)
	assert.Equal(t, "/images/cat.png", got.SelectedImageURL)
	assert.Equal(t, "cat.png", rec.lastLobby().SelectedImageID)
}

func TestGetOrAssignImageHealsMissingFile(t *testing.T) {
	lib := newFakeLibrary(t, "cat.png", "dog.png")
	rec := &recordingGateway{}
	s := NewStore(WithLogger(quietLogger()), WithImageProvider(lib), WithGateway(rec))
	ctx := context.Background()
	l, err := s.CreateLobby(ctx)
	require.NoError(t, err)

	first, err := s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	require.Equal(t, "cat.png", first.ID)

	lib.remove(t, "cat.png")

	healed, err := s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, "dog.png", healed.ID)

	got, err := s.GetLobby(l.Code)
	require.NoError(t, err)
	assert.Equal(t, "dog.png", got.SelectedImageID)
	assert.Equal(t, "dog.png", rec.lastLobby().SelectedImageID)
}

func TestGetOrAssignImageWithEmptyLibrary(t *testing.T) {
	lib := newFakeLibrary(t, "only.png")
	s := NewStore(WithLogger(quietLogger()), WithImageProvider(lib))
	ctx := context.Background()
	l, err := s.CreateLobby(ctx)
	require.NoError(t, err)

	_, err = s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	lib.remove(t, "only.png")

	img, err := s.GetOrAssignImage(ctx, l.Code)
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrImageUnavailable)

	// The stale binding is cleared and nothing new is bound.
	got, err := s.GetLobby(l.Code)
	require.NoError(t, err)
	assert.Empty(t, got.SelectedImageID)
	assert.Empty(t, got.SelectedImageURL)
}

func TestGetOrAssignImageProviderError(t *testing.T) {
	lib := newFakeLibrary(t)
	lib.err = errors.New("permission denied")
	s := NewStore(WithLogger(quietLogger()), WithImageProvider(lib))
	l, err := s.CreateLobby(context.Background())
	require.NoError(t, err)

	_, err = s.GetOrAssignImage(context.Background(), l.Code)
	assert.ErrorIs(t, err, ErrImageUnavailable)
	assert.ErrorContains(t, err, "permission denied")
}

func TestGetOrAssignImageUnknownLobby(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))
	_, err := s.GetOrAssignImage(context.Background(), "missing1")
	assert.ErrorIs(t, err, ErrLobbyNotFound)
}

func TestGetSelectedImagePath(t *testing.T) {
	lib := newFakeLibrary(t, "cat.png")
	s := NewStore(WithLogger(quietLogger()), WithImageProvider(lib))
	ctx := context.Background()
	l, err := s.CreateLobby(ctx)
	require.NoError(t, err)

	_, ok := s.GetSelectedImagePath("missing1")
	assert.False(t, ok)
	_, ok = s.GetSelectedImagePath(l.Code)
	assert.False(t, ok, "no binding yet")

	_, err = s.GetOrAssignImage(ctx, l.Code)
	require.NoError(t, err)
	path, ok := s.GetSelectedImagePath(l.Code)
	require.True(t, ok)
	assert.FileExists(t, path)

	lib.remove(t, "cat.png")
	_, ok = s.GetSelectedImagePath(l.Code)
	assert.False(t, ok)
}
