// Package account manages user sign-up, login and password changes.
//
// Passwords are stored and compared in plaintext to keep the existing client
// contract. This is a known weakness that needs a product decision before it
// changes.
package account

import (
	"context"

	"go.uber.org/zap"

	"github.com/modelsite/modelsite-go/pkg/metadatastore"
	"github.com/modelsite/modelsite-go/pkg/models"
)

// Service manages user accounts
type Service struct {
	store metadatastore.Store
	log   *zap.Logger
}

// NewService creates a new account service
func NewService(store metadatastore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func invalid(err error) error {
	return &models.Error{Code: models.EInvalid, Msg: err.Error(), Err: err}
}

// Signup registers a new user. It returns false without error when the
// username is already taken; the existing account is left untouched.
func (s *Service) Signup(ctx context.Context, creds *models.Credentials) (bool, error) {
	if err := creds.Validate(); err != nil {
		return false, invalid(err)
	}

	err := s.store.CreateUser(ctx, creds.Username, creds.Password)
	switch {
	case err == nil:
		s.log.Info("User signed up", zap.String("username", creds.Username))
		return true, nil
	case models.ErrorCode(err) == models.EConflict:
		s.log.Info("Signup rejected, username taken", zap.String("username", creds.Username))
		return false, nil
	default:
		return false, err
	}
}

// Login reports whether the credentials match a stored account
func (s *Service) Login(ctx context.Context, creds *models.Credentials) (bool, error) {
	if err := creds.Validate(); err != nil {
		return false, nil
	}
	ok, err := s.store.VerifyUser(ctx, creds.Username, creds.Password)
	if err != nil {
		return false, err
	}
	s.log.Debug("Login attempt", zap.String("username", creds.Username), zap.Bool("success", ok))
	return ok, nil
}

// ChangePassword sets a new password and reports whether the user exists
func (s *Service) ChangePassword(ctx context.Context, req *models.PasswordChangeRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, invalid(err)
	}
	return s.store.ChangePassword(ctx, req.Username, req.NewPassword)
}

// DeleteUser removes an account and reports whether it existed
func (s *Service) DeleteUser(ctx context.Context, username string) (bool, error) {
	deleted, err := s.store.DeleteUser(ctx, username)
	if err != nil {
		return false, err
	}
	if deleted {
		s.log.Info("User deleted", zap.String("username", username))
	}
	return deleted, nil
}
