// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	SlowConsumerError   = 3004 // Client stopped draining its outbound messages.
)
