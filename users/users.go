package users

import (
	"fmt"
	"unicode"
)

// User is a managed account as the administration API reports it.
type User struct {
	ID       string `json:"id,omitempty"` // Unique identifier for the user
	Username string `json:"username"`     // Unique username
	Enabled  bool   `json:"enabled"`      // Enabled, can the user currently log in
}

// CreateUser is the payload for registering a new user. The server
// assigns the ID.
type CreateUser struct {
	Username string `json:"username"`
	Enabled  bool   `json:"enabled"`
}

// ResetPassword carries a replacement credential for an existing user.
type ResetPassword struct {
	ID         string // User the credential belongs to
	Credential string // The new plain-text credential, sent to the server as-is
}

// ValidatePasswordStrength checks if a credential meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
