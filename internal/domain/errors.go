package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrMalformedRecord signals an undecodable corpus record.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrService signals that a backend accepted the connection but rejected the call.
	ErrService = errors.New("service error")
	// ErrConnectivity signals an unreachable backend.
	ErrConnectivity = errors.New("backend unreachable")
	// ErrConfig signals invalid or inconsistent configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrStateConflict signals an operation that would clobber existing state.
	ErrStateConflict = errors.New("state conflict")
)

// DimensionMismatchError wraps ErrConfig when a vector length deviates
// from the dimension probed at the start of the run.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: embedding dimension changed from %d to %d", ErrConfig.Error(), e.Want, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrConfig }

// NewDimensionMismatch creates a dimension mismatch error.
func NewDimensionMismatch(want, got int) error {
	return &DimensionMismatchError{Want: want, Got: got}
}

// RepositoryConflictError wraps ErrStateConflict when a snapshot repository
// is already registered with different settings.
type RepositoryConflictError struct {
	Name string
}

func (e *RepositoryConflictError) Error() string {
	return fmt.Sprintf("%s: repository %q already registered with different settings", ErrStateConflict.Error(), e.Name)
}

func (e *RepositoryConflictError) Unwrap() error { return ErrStateConflict }

// NewRepositoryConflict creates a repository conflict error.
func NewRepositoryConflict(name string) error {
	return &RepositoryConflictError{Name: name}
}

// SnapshotInProgressError wraps ErrStateConflict when an operation targets
// a snapshot that has not reached a terminal state.
type SnapshotInProgressError struct {
	Repository string
	Snapshot   string
}

func (e *SnapshotInProgressError) Error() string {
	return fmt.Sprintf("%s: snapshot %s/%s is in progress", ErrStateConflict.Error(), e.Repository, e.Snapshot)
}

func (e *SnapshotInProgressError) Unwrap() error { return ErrStateConflict }

// NewSnapshotInProgress creates an in-progress snapshot error.
func NewSnapshotInProgress(repository, snapshot string) error {
	return &SnapshotInProgressError{Repository: repository, Snapshot: snapshot}
}

// ArtifactMissingError wraps ErrConfig when an upstream pipeline artifact
// is absent. Hint names the command that produces it.
type ArtifactMissingError struct {
	Path string
	Hint string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("%s: artifact %s not found (%s)", ErrConfig.Error(), e.Path, e.Hint)
}

func (e *ArtifactMissingError) Unwrap() error { return ErrConfig }

// NewArtifactMissing creates a missing artifact error.
func NewArtifactMissing(path, hint string) error {
	return &ArtifactMissingError{Path: path, Hint: hint}
}
