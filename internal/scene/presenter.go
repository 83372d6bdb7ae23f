package scene

import "quantaverse/client/internal/spacetime"

// Presenter is the presentation layer as seen by the registry. It receives
// handle lifecycle calls and never calls back into the core.
type Presenter interface {
	// Initialize binds presentation resources for a newly created handle.
	// An error is fatal for that one entity only; the registry rolls the
	// entry back and keeps processing.
	Initialize(record spacetime.Record, isLocal bool, partitionRadius float64) error

	// UpdateData applies a replacement snapshot to an existing handle's
	// presentation state.
	UpdateData(record spacetime.Record)

	// Destroy releases presentation resources for a handle. Must tolerate
	// ids it has never seen.
	Destroy(id uint64)
}
