// Package models defines the data shapes shared between the storage layer,
// the HTTP handlers, and the views, together with the sentinel errors that
// make up the application's error taxonomy.
package models

import "errors"

// URLRecord is a single shortened URL owned by a user.
// LongURL is the only mutable field; ShortKey is stable for the record's lifetime.
type URLRecord struct {
	ShortKey    string `json:"short_key"`
	LongURL     string `json:"long_url"`
	OwnerUserID string `json:"owner_user_id"`
}

// RegisterForm carries the fields of the registration form.
type RegisterForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// LoginForm carries the fields of the login form.
type LoginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// Stats is the payload of the internal statistics endpoint.
type Stats struct {
	Urls  int64 `json:"urls"`
	Users int64 `json:"users"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrNotFound is returned when a short key or a user is absent from the storage.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by the storage when a registration would
// violate email uniqueness.
var ErrEmailTaken = errors.New("email is already registered")
