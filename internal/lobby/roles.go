package lobby

import (
	"context"
	"errors"

	"github.com/jason-s-yu/sketchlobby/internal/models"
	"github.com/sirupsen/logrus"
)

// RoleAssignment is the outcome of AssignRoles. It is a value; nothing keeps it.
type RoleAssignment struct {
	DescriberConnectionID string        `json:"describerConnectionId,omitempty"`
	DrawerConnectionID    string        `json:"drawerConnectionId,omitempty"`
	Describer             Player        `json:"describer"`
	Drawer                Player        `json:"drawer"`
	Image                 *models.Image `json:"image,omitempty"`
}

// AssignRoles picks a describer and a drawer for the next round and binds the
// round image.
//
// Connected players are preferred; with fewer than two of them the first two
// players are used regardless of connection state. The describer is chosen at
// random among the candidates and the drawer is the first other candidate.
// A missing image does not fail the assignment; Image is nil instead.
func (s *Store) AssignRoles(ctx context.Context, code string) (*RoleAssignment, error) {
	sess, ok := s.session(code)
	if !ok {
		return nil, ErrLobbyNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	players := sess.lobby.Players
	if len(players) < 2 {
		return nil, ErrInsufficientPlayers
	}

	candidates := make([]int, 0, len(players))
	for i := range players {
		if players[i].ConnectionID != "" {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) < 2 {
		candidates = []int{0, 1}
	}

	describerIdx := candidates[s.intn(len(candidates))]
	drawerIdx := -1
	for _, i := range candidates {
		if i != describerIdx {
			drawerIdx = i
			break
		}
	}

	describer := &players[describerIdx]
	drawer := &players[drawerIdx]
	describer.Role = models.RoleDescriber
	drawer.Role = models.RoleArtist
	s.persistPlayer(ctx, sess.lobby.ID, describer)
	s.persistPlayer(ctx, sess.lobby.ID, drawer)

	img, err := s.getOrAssignImageLocked(ctx, sess)
	if err != nil {
		if !errors.Is(err, ErrImageUnavailable) {
			return nil, err
		}
		s.log.WithFields(logrus.Fields{"code": code, "error": err}).Info("roles assigned without an image")
	}

	s.log.WithFields(logrus.Fields{
		"code":      code,
		"describer": describer.DisplayName,
		"drawer":    drawer.DisplayName,
	}).Info("roles assigned")

	return &RoleAssignment{
		DescriberConnectionID: describer.ConnectionID,
		DrawerConnectionID:    drawer.ConnectionID,
		Describer:             *describer,
		Drawer:                *drawer,
		Image:                 img,
	}, nil
}
