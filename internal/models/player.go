package models

import (
	"encoding/json"
	"fmt"
)

// Role is the part a player takes in the current round.
type Role int

const (
	RoleNone Role = iota
	RoleDescriber
	RoleArtist
)

func (r Role) String() string {
	switch r {
	case RoleDescriber:
		return "describer"
	case RoleArtist:
		return "artist"
	default:
		return "none"
	}
}

// ParseRole maps the wire name of a role back to its value.
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "none":
		return RoleNone, nil
	case "describer":
		return RoleDescriber, nil
	case "artist":
		return RoleArtist, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

// MarshalJSON encodes the role by name so clients never see the ordinal.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
