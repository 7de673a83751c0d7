package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleArtist})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"artist"}`, string(data))

	var got struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"describer"}`), &got))
	assert.Equal(t, RoleDescriber, got.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"judge"}`), &got))
	assert.Error(t, json.Unmarshal([]byte(`{"role":2}`), &got))
}

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleNone, RoleDescriber, RoleArtist} {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	parsed, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, parsed)
}
