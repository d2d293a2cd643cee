// Package mockstorage provides a testify-based mock implementation
// of the storage interface consumed by the router package.
// It is used for unit testing HTTP handlers by simulating storage behavior.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// StorageMock is a testify mock that implements the storage interface
// used by the router. Use it in handler tests to simulate backend failures.
type StorageMock struct {
	mock.Mock
}

// CreateUser mocks storing a new user.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	args := m.Called(ctx, usr)
	return args.String(0), args.Error(1)
}

// FindUserByID mocks resolving a user by ID.
func (m *StorageMock) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// FindUserByEmail mocks resolving a user by email.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// InsertURL mocks storing a URL record.
func (m *StorageMock) InsertURL(ctx context.Context, record models.URLRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// FindURLByShortKey mocks resolving a URL record by its short key.
func (m *StorageMock) FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error) {
	args := m.Called(ctx, shortKey)
	record, _ := args.Get(0).(models.URLRecord)
	return record, args.Bool(1), args.Error(2)
}

// UpdateURL mocks replacing the long URL of a record.
func (m *StorageMock) UpdateURL(ctx context.Context, shortKey, newLongURL string) error {
	args := m.Called(ctx, shortKey, newLongURL)
	return args.Error(0)
}

// DeleteURL mocks removing a record.
func (m *StorageMock) DeleteURL(ctx context.Context, shortKey string) error {
	args := m.Called(ctx, shortKey)
	return args.Error(0)
}

// FindURLsByOwner mocks listing the records owned by a user.
func (m *StorageMock) FindURLsByOwner(ctx context.Context, ownerUserID string) ([]models.URLRecord, error) {
	args := m.Called(ctx, ownerUserID)
	records, _ := args.Get(0).([]models.URLRecord)
	return records, args.Error(1)
}

// GetNumberOfShortenedURLs mocks counting the URL directory.
func (m *StorageMock) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfUsers mocks counting the user directory.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing the backend resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
