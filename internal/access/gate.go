// Package access evaluates whether a resolution request may pass a link's
// expiry and password controls.
package access

import (
	"fmt"
	"time"

	"github.com/pulselabs/linkpulse/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Reason explains why a resolution was denied.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonExpired means the link's expiry has passed.
	ReasonExpired
	// ReasonPasswordRequired means the link is protected and no credential
	// was supplied. The boundary decides how to send the client to a
	// credential-entry surface.
	ReasonPasswordRequired
	// ReasonInvalidCredential means the supplied password did not match.
	ReasonInvalidCredential
)

// Decision is the terminal state of one gate evaluation.
type Decision struct {
	Granted bool
	Reason  Reason
}

var granted = Decision{Granted: true}

func denied(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Evaluate runs the gate state machine for one resolution request:
// expiry first, then the password check. Evaluations share no state, so
// concurrent resolutions of the same link are independent.
func Evaluate(link *models.Link, password string, now time.Time) Decision {
	if link.Expired(now) {
		return denied(ReasonExpired)
	}

	if !link.Protected() {
		return granted
	}

	if password == "" {
		return denied(ReasonPasswordRequired)
	}

	// bcrypt's comparison is constant-time over the hash.
	if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)); err != nil {
		return denied(ReasonInvalidCredential)
	}

	return granted
}

// HashPassword derives the salted hash stored on protected links.
func HashPassword(password string) (string, error) {
	const op = "access.HashPassword"

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	return string(hash), nil
}
