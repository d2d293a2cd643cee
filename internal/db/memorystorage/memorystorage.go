// Package memorystorage provides the purely in-memory storage backend.
// It reuses the jsondb cache structure but never touches the filesystem,
// so all data is lost on restart.
package memorystorage

import (
	"github.com/patric-chuzhbe/tinyapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// MemoryStorage is the in-memory storage backend.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New returns an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{
				Users: map[string]*user.User{},
				Urls:  map[string]models.URLRecord{},
			},
		},
	}, nil
}

// Close is a no-op: there is nothing to flush.
func (theStorage *MemoryStorage) Close() error {
	return nil
}
