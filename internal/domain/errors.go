package domain

import "errors"

var (
	// ErrUnauthenticated is returned before any I/O when no user ID was supplied.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrChallengeNotFound is returned when a challenge cannot be located.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrNewsSourceNotFound is returned when a news source cannot be located.
	ErrNewsSourceNotFound = errors.New("news source not found")
)
