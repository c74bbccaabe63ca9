package engine

// Op constants map to engine API endpoints for error context.
const (
	OpPing             = "ping"
	OpIndexExists      = "indices.exists"
	OpCreateIndex      = "indices.create"
	OpDeleteIndex      = "indices.delete"
	OpRefresh          = "indices.refresh"
	OpBulk             = "bulk"
	OpStats            = "indices.stats"
	OpCatShards        = "cat.shards"
	OpGetRepository    = "snapshot.get_repository"
	OpCreateRepository = "snapshot.create_repository"
	OpCreateSnapshot   = "snapshot.create"
	OpListSnapshots    = "snapshot.get"
	OpSnapshotStatus   = "snapshot.status"
	OpDeleteSnapshot   = "snapshot.delete"
	OpRestoreSnapshot  = "snapshot.restore"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
