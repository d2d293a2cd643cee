// Package jsondb provides a file-backed implementation of the storage
// interface. The whole dataset lives in memory and is flushed to a JSON
// file on Close, which makes it suitable for development and small
// single-instance deployments.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// CacheStruct is the serialized shape of the database file.
type CacheStruct struct {
	Users map[string]*user.User
	Urls  map[string]models.URLRecord
}

// JSONDB keeps the user and URL directories in memory and persists them
// to a single JSON file. All access is guarded by an RW mutex because the
// HTTP server calls into it concurrently.
type JSONDB struct {
	fileName string

	Mu    sync.RWMutex
	Cache CacheStruct
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Users": {},
	"Urls": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

// New opens (or creates) the database file and loads it into memory.
func New(fileName string) (*JSONDB, error) {
	db := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(db.fileName, &db.Cache)
		if err != nil {
			return nil, err
		}
	}
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*user.User{}
	}
	if db.Cache.Urls == nil {
		db.Cache.Urls = map[string]models.URLRecord{}
	}

	return &db, nil
}

// CreateUser stores a new user record. The email uniqueness check runs
// under the same lock as the insert, so check-then-create is atomic here.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	db.Mu.Lock()
	defer db.Mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Email == usr.Email {
			return "", models.ErrEmailTaken
		}
	}

	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	db.Cache.Users[usr.ID] = &user.User{
		ID:           usr.ID,
		Email:        usr.Email,
		PasswordHash: usr.PasswordHash,
	}

	return usr.ID, nil
}

// FindUserByID resolves a user by its ID.
func (db *JSONDB) FindUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}
	copied := *usr

	return &copied, true, nil
}

// FindUserByEmail scans the user directory for the first record with the
// given email. The comparison is case-sensitive.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			copied := *usr
			return &copied, true, nil
		}
	}

	return nil, false, nil
}

// InsertURL stores a URL record. An existing record under the same short
// key is overwritten.
func (db *JSONDB) InsertURL(ctx context.Context, record models.URLRecord) error {
	db.Mu.Lock()
	defer db.Mu.Unlock()

	db.Cache.Urls[record.ShortKey] = record

	return nil
}

// FindURLByShortKey resolves a URL record by its short key.
func (db *JSONDB) FindURLByShortKey(ctx context.Context, shortKey string) (models.URLRecord, bool, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	record, found := db.Cache.Urls[shortKey]

	return record, found, nil
}

// UpdateURL replaces the long URL of an existing record.
func (db *JSONDB) UpdateURL(ctx context.Context, shortKey, newLongURL string) error {
	db.Mu.Lock()
	defer db.Mu.Unlock()

	record, found := db.Cache.Urls[shortKey]
	if !found {
		return models.ErrNotFound
	}
	record.LongURL = newLongURL
	db.Cache.Urls[shortKey] = record

	return nil
}

// DeleteURL removes a record from the URL directory.
func (db *JSONDB) DeleteURL(ctx context.Context, shortKey string) error {
	db.Mu.Lock()
	defer db.Mu.Unlock()

	if _, found := db.Cache.Urls[shortKey]; !found {
		return models.ErrNotFound
	}
	delete(db.Cache.Urls, shortKey)

	return nil
}

// FindURLsByOwner returns every record owned by the given user.
func (db *JSONDB) FindURLsByOwner(ctx context.Context, ownerUserID string) ([]models.URLRecord, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	records := funk.Values(db.Cache.Urls).([]models.URLRecord)
	result := funk.Filter(
		records,
		func(record models.URLRecord) bool {
			return record.OwnerUserID == ownerUserID
		},
	).([]models.URLRecord)

	return result, nil
}

// GetNumberOfShortenedURLs returns the size of the URL directory.
func (db *JSONDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	return int64(len(db.Cache.Urls)), nil
}

// GetNumberOfUsers returns the size of the user directory.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// Ping always succeeds for the file-backed storage.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the in-memory dataset to the database file.
func (db *JSONDB) Close() error {
	db.Mu.RLock()
	defer db.Mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}
