package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// SendType distinguishes a text share from a file share.
type SendType int

const (
	SendText SendType = iota
	SendFile
)

// Send is a shareable encrypted blob with optional password gate, access
// count and expiry.
type Send struct {
	ID              uuid.UUID
	UserID          *uuid.UUID
	Type            SendType
	Data            EncryptedBlob
	PasswordHash    []byte // PBKDF2 over a sender-chosen password, optional
	PasswordSalt    []byte
	MaxAccessCount  *int
	AccessCount     int
	ExpirationDate  *time.Time
	DeletionDate    time.Time // must be <= now+31d at creation
	Disabled        bool
	HideEmail       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MaxSendLifetime bounds how far in the future a Send's deletion date may
// be set, per spec invariant 8.
const MaxSendLifetime = 31 * 24 * time.Hour

// IsExhausted reports whether the send has hit its access-count ceiling.
func (s Send) IsExhausted() bool {
	return s.MaxAccessCount != nil && s.AccessCount >= *s.MaxAccessCount
}

// IsExpired reports whether the send is disabled, past its deletion date,
// past its optional expiration date, or access-exhausted.
func (s Send) IsExpired(now time.Time) bool {
	if s.Disabled || s.IsExhausted() {
		return true
	}
	if now.After(s.DeletionDate) {
		return true
	}
	if s.ExpirationDate != nil && now.After(*s.ExpirationDate) {
		return true
	}
	return false
}
