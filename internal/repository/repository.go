// Package repository contains the persistence contract for document records.
// Implementations live in subpackages (memory, postgres).
package repository

import "errors"

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create for a duplicate id.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrConflict is returned by Update when the stored record moved on in a way
	// the update does not account for, e.g. two writers appending the same version.
	ErrConflict = errors.New("document was modified concurrently")
)
