// ABOUTME: Common storage errors
// ABOUTME: Enables consistent error handling across storage implementations

package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRecorded is returned when a session already has a completion.
var ErrAlreadyRecorded = errors.New("session already recorded")
