// Package storage declares the interface every storage backend of the
// application satisfies. Handlers depend on this interface (or narrower
// slices of it), never on a concrete backend.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// Storage is the full contract of a storage backend: the user directory,
// the URL directory, and operational concerns.
//
// Finders report absence through their boolean result, not through an error;
// an error means the backend itself failed.
type Storage interface {
	// CreateUser stores a new user and returns its ID. The backend assigns
	// the ID when usr.ID is empty. models.ErrEmailTaken is returned when
	// the email is already registered.
	CreateUser(ctx context.Context, usr *user.User) (string, error)

	FindUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)

	// InsertURL stores a URL record under record.ShortKey.
	// An existing record under the same key is overwritten.
	InsertURL(ctx context.Context, record models.URLRecord) error

	FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error)

	// UpdateURL replaces the long URL of an existing record.
	// Ownership must have been verified by the caller.
	UpdateURL(ctx context.Context, shortKey, newLongURL string) error

	// DeleteURL removes a record. Ownership must have been verified by the caller.
	DeleteURL(ctx context.Context, shortKey string) error

	// FindURLsByOwner returns every record owned by the given user.
	FindURLsByOwner(ctx context.Context, ownerUserID string) ([]models.URLRecord, error)

	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
