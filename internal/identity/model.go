package identity

import "time"

// User is a registered account. Records are written once at registration and
// never updated.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Credentials carries a plaintext username/password pair for register and
// login. It is never persisted.
type Credentials struct {
	Username string
	Password string
}
