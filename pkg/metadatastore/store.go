package metadatastore

import (
	"context"

	"github.com/modelsite/modelsite-go/pkg/models"
)

// Store persists user accounts and saved model runs. Every call is a single
// self-contained statement.
type Store interface {
	// User operations. Passwords are stored and compared as given.
	CreateUser(ctx context.Context, username, password string) error
	VerifyUser(ctx context.Context, username, password string) (bool, error)
	DeleteUser(ctx context.Context, username string) (bool, error)
	ChangePassword(ctx context.Context, username, newPassword string) (bool, error)

	// Model history operations
	SaveModelResult(ctx context.Context, entry *models.HistoryEntry) error
	ListModelResults(ctx context.Context, username string) ([]*models.HistoryEntry, error)
	ClearModelResults(ctx context.Context, username string) (int64, error)

	// Maintenance
	Ping(ctx context.Context) error
	Optimize(ctx context.Context) error
	Close() error
}
