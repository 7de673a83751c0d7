// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/sketchlobby/internal/gallery"
	"github.com/jason-s-yu/sketchlobby/internal/lobby"
	"github.com/jason-s-yu/sketchlobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// Server holds the lobby store, the connection hub and the image library
// behind the HTTP and websocket endpoints.
type Server struct {
	Store   *lobby.Store
	Hub     *Hub
	Gallery *gallery.Library

	// UploadMaxBytes caps a gallery upload request body.
	UploadMaxBytes int64

	log logrus.FieldLogger
}

// NewServer wires a Server. A nil hub gets a fresh one.
func NewServer(store *lobby.Store, hub *Hub, lib *gallery.Library, logger logrus.FieldLogger) *Server {
	if hub == nil {
		hub = NewHub(logger)
	}
	return &Server{
		Store:          store,
		Hub:            hub,
		Gallery:        lib,
		UploadMaxBytes: 20 << 20,
		log:            logger,
	}
}

// Routes registers every endpoint on a new mux wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// lobby endpoints
	mux.HandleFunc("POST /lobby/join", s.JoinLobbyHandler)
	mux.HandleFunc("GET /lobby/list", s.ListLobbiesHandler)
	mux.HandleFunc("GET /lobby/{code}", s.GetLobbyHandler)
	mux.HandleFunc("GET /lobby/{code}/image", s.LobbyImageHandler)
	mux.HandleFunc("GET /lobby/{code}/image/file", s.LobbyImageFileHandler)
	mux.HandleFunc("POST /lobby/{code}/roles", s.AssignRolesHandler)

	// lobby ws
	mux.HandleFunc("GET /lobby/ws", s.LobbyWSHandler)

	// gallery endpoints
	mux.HandleFunc("GET /gallery", s.ListImagesHandler)
	mux.HandleFunc("GET /gallery/random", s.RandomImageHandler)
	mux.HandleFunc("POST /gallery", s.UploadImageHandler)
	mux.Handle("GET "+gallery.URLPrefix, http.StripPrefix(gallery.URLPrefix, http.FileServer(http.Dir(s.Gallery.Root()))))

	return middleware.LogMiddleware(s.log)(mux)
}

// announceJoin tells the lobby group that a player arrived.
func (s *Server) announceJoin(code, name string, iconID int) {
	s.Hub.Broadcast(code, map[string]interface{}{
		"type":  "player_joined",
		"lobby": code,
		"name":  name,
		"icon":  iconID,
	})
}

// assignRoles runs a role assignment and fans the result out: each chosen
// player learns its role, only the describer receives the image, and the
// whole group learns who was picked.
func (s *Server) assignRoles(ctx context.Context, code string) (*lobby.RoleAssignment, error) {
	res, err := s.Store.AssignRoles(ctx, code)
	if err != nil {
		return nil, err
	}

	if res.DescriberConnectionID != "" {
		s.Hub.SendTo(res.DescriberConnectionID, map[string]interface{}{
			"type": "assigned_role",
			"role": res.Describer.Role.String(),
		})
	}
	if res.DrawerConnectionID != "" {
		s.Hub.SendTo(res.DrawerConnectionID, map[string]interface{}{
			"type": "assigned_role",
			"role": res.Drawer.Role.String(),
		})
	}
	if res.Image != nil && res.DescriberConnectionID != "" {
		s.Hub.SendTo(res.DescriberConnectionID, map[string]interface{}{
			"type": "receive_image",
			"url":  res.Image.URL,
		})
	}
	s.Hub.Broadcast(code, map[string]interface{}{
		"type":      "roles_assigned",
		"describer": res.Describer.DisplayName,
		"drawer":    res.Drawer.DisplayName,
	})
	return res, nil
}
