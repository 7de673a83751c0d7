package handlers

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jason-s-yu/sketchlobby/internal/gallery"
	"github.com/jason-s-yu/sketchlobby/internal/lobby"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestServer builds a Server over a temp gallery holding the named files.
// The describer is always the first candidate so role tests are stable.
func newTestServer(t *testing.T, images ...string) *Server {
	t.Helper()
	lib, err := gallery.Open(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)
	for _, name := range images {
		require.NoError(t, os.WriteFile(filepath.Join(lib.Root(), name), []byte("img:"+name), 0o644))
	}
	logger := quietLogger()
	store := lobby.NewStore(
		lobby.WithLogger(logger),
		lobby.WithImageProvider(lib),
		lobby.WithRandom(func(int) int { return 0 }),
	)
	return NewServer(store, nil, lib, logger)
}
