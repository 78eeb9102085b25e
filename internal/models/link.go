package models

import "time"

// AnonymousOwner is the owner assigned to links created without an owner identifier.
const AnonymousOwner = "anonymous"

// Link represents a shortened URL and its associated metadata.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// Code is the short code used as the lookup key at the redirect boundary.
	// It is immutable once assigned.
	Code string
	// Destination is the original, full-length URL that the code points to.
	Destination string
	// Owner is an opaque identifier of the link's creator.
	Owner string
	// PasswordHash is the bcrypt hash guarding the link. Empty when the link
	// is not password-protected.
	PasswordHash string
	// ExpiresAt is the instant at which the link stops resolving. Nil means
	// the link never expires.
	ExpiresAt *time.Time
	// ClickCount tracks the number of granted resolutions. It is the
	// authoritative total; the visit history may lag behind it.
	ClickCount int64
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the link was last updated.
	UpdatedAt time.Time
}

// Protected reports whether resolving the link requires a password.
func (l *Link) Protected() bool {
	return l.PasswordHash != ""
}

// Expired reports whether the link is unresolvable at the given instant.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}
