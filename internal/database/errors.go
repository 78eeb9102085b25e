package database

import "errors"

var (
	// ErrCodeExists is returned when an attempt is made to create
	// a link with a short code that already exists.
	ErrCodeExists = errors.New("short code exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a link using a short code that doesn't exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrLinkExpired is returned when the short code refers to a link
	// whose expiry has passed. It is distinct from ErrLinkNotFound so
	// the boundary can answer 410 instead of 404.
	ErrLinkExpired = errors.New("link expired")
)
