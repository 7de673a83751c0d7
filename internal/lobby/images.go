package lobby

import (
	"context"
	"fmt"
	"os"

	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/sirupsen/logrus"
)

// GetOrAssignImage returns the image bound to the lobby, binding a random one
// first if there is none. A binding whose file has disappeared is dropped and
// replaced rather than reported as an error.
func (s *Store) GetOrAssignImage(ctx context.Context, code string) (*models.Image, error) {
	sess, ok := s.session(code)
	if !ok {
		return nil, ErrLobbyNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.getOrAssignImageLocked(ctx, sess)
}

// GetSelectedImagePath resolves the lobby's bound image to a file path.
func (s *Store) GetSelectedImagePath(code string) (string, bool) {
	sess, ok := s.session(code)
	if !ok {
		return "", false
	}
	sess.mu.Lock()
	imageID := sess.lobby.SelectedImageID
	sess.mu.Unlock()
	if imageID == "" {
		return "", false
	}
	return s.images.ResolvePath(imageID)
}

// getOrAssignImageLocked does the work of GetOrAssignImage. Caller holds sess.mu.
func (s *Store) getOrAssignImageLocked(ctx context.Context, sess *session) (*models.Image, error) {
	l := &sess.lobby
	if l.SelectedImageID != "" {
		if img, ok := s.describeBound(l); ok {
			return img, nil
		}
		s.log.WithFields(logrus.Fields{
			"code":  l.Code,
			"image": l.SelectedImageID,
		}).Warn("bound image is gone, picking another")
		l.SelectedImageID = ""
		l.SelectedImageURL = ""
		s.persistLobby(ctx, l)
	}

	picked, err := s.images.RandomImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	if picked == nil {
		return nil, ErrImageUnavailable
	}
	l.SelectedImageID = picked.ID
	l.SelectedImageURL = picked.URL
	s.persistLobby(ctx, l)

	img := *picked
	return &img, nil
}

func (s *Store) describeBound(l *Lobby) (*models.Image, bool) {
	path, ok := s.images.ResolvePath(l.SelectedImageID)
	if !ok {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return &models.Image{
		ID:        l.SelectedImageID,
		URL:       l.SelectedImageURL,
		SizeBytes: info.Size(),
	}, true
}
