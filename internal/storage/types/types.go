package types

import "time"

// User owns zero or more metadata records. PasswordHash is a bcrypt hash;
// the storage layer never sees plaintext passwords.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MetadataRecord states "user UserID has the content identified by
// ContentHash in their archive". Several records may share a ContentHash:
// the same message archived by different users is stored once.
type MetadataRecord struct {
	ID          int64
	UserID      int64
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Constants for content handling
const (
	// MaxMessageSize is the upper bound accepted for a single raw message.
	MaxMessageSize = 500 * 1024 * 1024 // 500 MB
)
