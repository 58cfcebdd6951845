package models

import (
	"fmt"
	"strings"
)

// User is a registered account. Passwords are stored and compared as plaintext;
// this mirrors the existing client contract and is a known weakness.
type User struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
}

// Credentials is the body of the signup and login endpoints
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates the credentials
func (c *Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// PasswordChangeRequest is the body of the change-password endpoint
type PasswordChangeRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

// Validate validates the password change request
func (r *PasswordChangeRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if r.NewPassword == "" {
		return fmt.Errorf("new_password is required")
	}
	return nil
}
