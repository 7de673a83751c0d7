// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/sketchlobby/internal/lobby"
	"github.com/jason-s-yu/sketchlobby/internal/middleware"
	"github.com/sirupsen/logrus"
)

// lobbyPacket is any client message. Which fields matter depends on Type.
type lobbyPacket struct {
	Type  string `json:"type"`
	Lobby string `json:"lobby"`
	Name  string `json:"name"`
	Icon  int    `json:"icon"`
	Msg   string `json:"msg"`
}

// LobbyWSHandler upgrades to the "lobby" subprotocol and serves one
// connection until it closes.
func (s *Server) LobbyWSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		s.log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(uuid.NewString(), cancel, func() {
		c.Close(SlowConsumerError, "connection too slow to keep up with messages")
	})
	s.Hub.Register(client)
	middleware.LogWebSocketConnect(s.log, remoteAddr, r.URL.Path)

	go writePump(ctx, c, client, s.log)
	err = s.readPump(ctx, c, client)

	// Cleanup after readPump exits.
	codes := s.Hub.Unregister(client)
	if p, changed := s.Store.DisconnectConnection(context.WithoutCancel(ctx), client.ID); changed {
		s.log.WithFields(logrus.Fields{
			"conn":    client.ID,
			"player":  p.DisplayName,
			"lobbies": codes,
		}).Debug("player disconnected")
	}
	middleware.LogWebSocketDisconnect(s.log, remoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// readPump handles incoming messages until the connection ends. It returns
// nil for a normal close.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, client *Client) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.log.Warnf("Lobby: received non-text message type %d from %s. Ignoring.", typ, client.ID)
			continue
		}

		var packet lobbyPacket
		if err := json.Unmarshal(msg, &packet); err != nil {
			client.WriteError("Invalid JSON format")
			continue
		}
		s.handleLobbyMessage(ctx, client, packet)
	}
}

// handleLobbyMessage interprets the "type" field of a client message.
func (s *Server) handleLobbyMessage(ctx context.Context, client *Client, packet lobbyPacket) {
	if packet.Lobby == "" {
		client.WriteError("lobby is required")
		return
	}
	logger := s.log.WithFields(logrus.Fields{"conn": client.ID, "code": packet.Lobby})

	switch packet.Type {
	case "join":
		p, err := s.Store.AddOrUpdatePlayerConnection(ctx, packet.Lobby, packet.Name, packet.Icon, client.ID)
		if err != nil {
			logger.WithError(err).Warn("join rejected")
			client.WriteError(err.Error())
			return
		}
		s.Hub.AddToGroup(packet.Lobby, client.ID)
		if l, ok := s.Store.Lookup(packet.Lobby); ok {
			client.Send(map[string]interface{}{
				"type":    "players_state",
				"players": l.PlayerNames(),
			})
		}
		s.announceJoin(packet.Lobby, p.DisplayName, p.IconID)

	case "chat":
		if packet.Msg == "" {
			return
		}
		s.Hub.Broadcast(packet.Lobby, map[string]interface{}{
			"type": "lobby_message",
			"msg":  packet.Msg,
			"name": packet.Name,
		})

	case "get_players":
		l, ok := s.Store.Lookup(packet.Lobby)
		if !ok {
			client.WriteError("Lobby not found")
			return
		}
		client.Send(map[string]interface{}{
			"type":    "players_state",
			"players": l.PlayerNames(),
		})

	case "assign_roles":
		if _, err := s.assignRoles(ctx, packet.Lobby); err != nil {
			switch {
			case errors.Is(err, lobby.ErrLobbyNotFound):
				client.WriteError("Lobby not found")
			case errors.Is(err, lobby.ErrInsufficientPlayers):
				client.WriteError("At least two players are needed")
			default:
				logger.WithError(err).Error("assign roles failed")
				client.WriteError("Could not assign roles")
			}
		}

	default:
		logger.Warnf("Lobby: unknown action '%s'", packet.Type)
		client.WriteError(fmt.Sprintf("Unknown action type: %s", packet.Type))
	}
}

// writePump drains the client's outbound queue and keeps the connection alive
// with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, client *Client, logger logrus.FieldLogger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-client.OutChan:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Lobby: failed to marshal outgoing msg for %s: %v", client.ID, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: failed to write to websocket for %s: %v", client.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Lobby: failed to send ping to %s: %v. Assuming disconnect.", client.ID, err)
				return
			}
		}
	}
}
