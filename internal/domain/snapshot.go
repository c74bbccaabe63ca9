package domain

import "time"

// SnapshotState is the lifecycle state reported by the engine.
type SnapshotState string

// Snapshot lifecycle states. REQUESTED and IN_PROGRESS are transient,
// the rest are terminal.
const (
	SnapshotRequested  SnapshotState = "REQUESTED"
	SnapshotInProgress SnapshotState = "IN_PROGRESS"
	SnapshotSuccess    SnapshotState = "SUCCESS"
	SnapshotPartial    SnapshotState = "PARTIAL"
	SnapshotFailed     SnapshotState = "FAILED"
)

// Terminal reports whether the state is final.
func (s SnapshotState) Terminal() bool {
	switch s {
	case SnapshotSuccess, SnapshotPartial, SnapshotFailed:
		return true
	}
	return false
}

// Snapshot describes one snapshot in a repository.
type Snapshot struct {
	Name      string
	State     SnapshotState
	Indices   []string
	StartTime time.Time
	EndTime   time.Time
}

// RepositoryConfig describes a filesystem snapshot repository.
type RepositoryConfig struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Compress bool   `json:"compress"`
}

// Equal reports whether two repository configs describe the same repository.
func (c RepositoryConfig) Equal(other RepositoryConfig) bool {
	return c.Type == other.Type && c.Location == other.Location && c.Compress == other.Compress
}

// RestoreOptions controls how indices come back from a snapshot.
// Empty Indices restores everything the snapshot holds. RenamePattern and
// RenameReplacement rewrite restored index names so a live index is not
// clobbered.
type RestoreOptions struct {
	Indices           []string
	RenamePattern     string
	RenameReplacement string
	Wait              bool
}
