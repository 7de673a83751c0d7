// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jason-s-yu/sketchlobby/internal/lobby"
	"github.com/sirupsen/logrus"
)

// joinRequest is the body of POST /lobby/join.
type joinRequest struct {
	Username string `json:"username"`
	LobbyID  string `json:"lobbyId"`
	IconID   int    `json:"iconId"`
}

// JoinLobbyHandler creates a lobby when no lobbyId is given, otherwise adds
// the user to the named lobby and tells its connections.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad join request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	player := lobby.Player{DisplayName: req.Username, IconID: req.IconID}

	if req.LobbyID == "" {
		l, err := s.Store.CreateLobby(r.Context())
		if err != nil {
			s.log.WithError(err).Error("create lobby failed")
			http.Error(w, "could not create lobby", http.StatusInternalServerError)
			return
		}
		if _, err := s.Store.AddPlayer(r.Context(), player, l.Code); err != nil {
			s.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"lobbyCode": l.Code})
		return
	}

	if !s.Store.LobbyExists(req.LobbyID) {
		http.Error(w, "Lobby not found", http.StatusBadRequest)
		return
	}
	p, err := s.Store.AddPlayer(r.Context(), player, req.LobbyID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.announceJoin(req.LobbyID, p.DisplayName, p.IconID)
	writeJSON(w, http.StatusOK, map[string]string{"username": p.DisplayName})
}

// ListLobbiesHandler returns every live lobby.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.GetAllLobbies())
}

// GetLobbyHandler returns one lobby.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, err := s.Store.GetLobby(r.PathValue("code"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// LobbyImageHandler returns the lobby's round image, binding one if needed.
func (s *Server) LobbyImageHandler(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !s.Store.LobbyExists(code) {
		http.Error(w, "Lobby not found", http.StatusNotFound)
		return
	}
	img, err := s.Store.GetOrAssignImage(r.Context(), code)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// LobbyImageFileHandler serves the bytes of the lobby's bound image.
func (s *Server) LobbyImageFileHandler(w http.ResponseWriter, r *http.Request) {
	path, ok := s.Store.GetSelectedImagePath(r.PathValue("code"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// AssignRolesHandler picks describer and drawer over HTTP. The image only
// ever goes to the describer's connection, never into this response.
func (s *Server) AssignRolesHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.assignRoles(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"describer": res.Describer.DisplayName,
		"drawer":    res.Drawer.DisplayName,
	})
}

// writeStoreError maps lobby errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lobby.ErrLobbyNotFound):
		http.Error(w, "Lobby not found", http.StatusNotFound)
	case errors.Is(err, lobby.ErrImageUnavailable):
		http.Error(w, "No images available.", http.StatusNotFound)
	case errors.Is(err, lobby.ErrInsufficientPlayers):
		http.Error(w, "At least two players are needed", http.StatusConflict)
	case errors.Is(err, lobby.ErrInvalidDisplayName), errors.Is(err, lobby.ErrInvalidCode):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.WithFields(logrus.Fields{"error": err}).Error("lobby request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
