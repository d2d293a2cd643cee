// Package user defines the user model used throughout the application,
// particularly for authentication and user-specific URL ownership.
package user

// User represents a registered account.
// PasswordHash is a bcrypt hash and is never rendered or serialized to clients.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string `json:"id"`

	// Email is unique across the user directory; comparison is case-sensitive.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string `json:"password_hash"`
}
