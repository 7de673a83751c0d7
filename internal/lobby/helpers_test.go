package lobby

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/jason-s-yu/sketchlobby/internal/persistence"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockGateway is a testify mock of persistence.Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) UpsertLobby(ctx context.Context, l persistence.LobbyRecord) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockGateway) UpsertPlayer(ctx context.Context, p persistence.PlayerRecord) error {
	return m.Called(ctx, p).Error(0)
}

func newAcceptingGateway() *mockGateway {
	gw := &mockGateway{}
	gw.On("UpsertLobby", mock.Anything, mock.Anything).Return(nil)
	gw.On("UpsertPlayer", mock.Anything, mock.Anything).Return(nil)
	return gw
}

// recordingGateway keeps every write so tests can inspect what was mirrored.
type recordingGateway struct {
	mu      sync.Mutex
	err     error
	lobbies []persistence.LobbyRecord
	players []persistence.PlayerRecord
}

func (g *recordingGateway) UpsertLobby(_ context.Context, l persistence.LobbyRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lobbies = append(g.lobbies, l)
	return g.err
}

func (g *recordingGateway) UpsertPlayer(_ context.Context, p persistence.PlayerRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players = append(g.players, p)
	return g.err
}

func (g *recordingGateway) lastLobby() persistence.LobbyRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lobbies[len(g.lobbies)-1]
}

// fakeLibrary is an ImageProvider over files in a temp dir. RandomImage hands
// out the ids in picks order, cycling.
type fakeLibrary struct {
	mu    sync.Mutex
	dir   string
	picks []string
	next  int
	err   error
}

func newFakeLibrary(t *testing.T, ids ...string) *fakeLibrary {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id), []byte("img:"+id), 0o644))
	}
	return &fakeLibrary{dir: dir, picks: ids}
}

func (f *fakeLibrary) RandomImage() (*models.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for range f.picks {
		id := f.picks[f.next%len(f.picks)]
		f.next++
		info, err := os.Stat(filepath.Join(f.dir, id))
		if err != nil {
			continue
		}
		return &models.Image{ID: id, URL: "/images/" + id, SizeBytes: info.Size()}, nil
	}
	return nil, nil
}

func (f *fakeLibrary) ResolvePath(imageID string) (string, bool) {
	path := filepath.Join(f.dir, imageID)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (f *fakeLibrary) remove(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(f.dir, id)))
}

// sequenceCodes returns the given codes in order, repeating the last one.
func sequenceCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return CodeGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[min(i, len(codes)-1)]
		i++
		return code
	})
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var errDBDown = errors.New("db down")
