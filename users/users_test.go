package users_test

import (
	"testing"

	"github.com/jrsteele09/go-admin-console/users"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "valid password", password: "Password123"},
		{name: "too short", password: "Pw1", wantErr: "at least 8 characters"},
		{name: "missing uppercase", password: "password123", wantErr: "uppercase"},
		{name: "missing lowercase", password: "PASSWORD123", wantErr: "lowercase"},
		{name: "missing number", password: "PasswordOnly", wantErr: "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEditRoleCommandRole(t *testing.T) {
	cmd := users.EditRoleCommand{
		UserID:   "u1",
		RoleID:   "r1",
		RoleName: "manager",
		Checked:  true,
	}

	role := cmd.Role()
	require.Equal(t, "r1", role.ID)
	require.Equal(t, "manager", role.Name)
	require.False(t, role.IsInRole)
}
