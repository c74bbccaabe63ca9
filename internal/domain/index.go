package domain

// IndexStats is the verification snapshot of one index as reported by the engine.
type IndexStats struct {
	Documents      int64
	StoreSizeBytes int64
	PrimaryShards  int
	ReplicaShards  int
}

// StoreSizeMB returns the store size in mebibytes for reporting.
func (s IndexStats) StoreSizeMB() float64 {
	return float64(s.StoreSizeBytes) / (1024 * 1024)
}
