package lobby

import "errors"

var (
	// ErrLobbyNotFound is returned when no live lobby has the requested code.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrInsufficientPlayers is returned when role assignment needs two players and the lobby has fewer.
	ErrInsufficientPlayers = errors.New("lobby needs at least two players")
	// ErrImageUnavailable is returned when the image library has nothing to bind.
	ErrImageUnavailable = errors.New("no images available")
	// ErrInvalidDisplayName is returned for blank or over-long display names.
	ErrInvalidDisplayName = errors.New("invalid display name")
	// ErrInvalidCode is returned when a blank or over-long code is used where a lobby would be created.
	ErrInvalidCode = errors.New("invalid lobby code")
	// ErrCodeSpaceExhausted is returned when every generated code in a row collided.
	ErrCodeSpaceExhausted = errors.New("could not generate an unused lobby code")
)
