package entities

import "quantaverse/client/internal/spacetime"

// Handle is the local live object standing in for one remote entity record.
// Exactly one flag distinguishes local authority (transform driven by local
// input) from remote authority (transform driven by incoming snapshots).
type Handle struct {
	id   uint64
	kind string

	// local marks the single handle whose transform local input owns.
	local bool

	// pos/rot are the handle's authoritative transform. For remote handles
	// they always mirror the latest snapshot; for the local handle they are
	// driven by SetLocalTransform and only overwritten on a forced teleport.
	pos spacetime.Vec3
	rot spacetime.Vec3

	record    spacetime.Record
	destroyed bool
}

func newHandle(record spacetime.Record, local bool) *Handle {
	return &Handle{
		id:     record.StableID(),
		kind:   record.RecordKind(),
		local:  local,
		pos:    record.Position(),
		rot:    record.Rotation(),
		record: record,
	}
}

// ID returns the server-issued stable id.
func (h *Handle) ID() uint64 { return h.id }

// Kind returns the record kind backing this handle.
func (h *Handle) Kind() string { return h.kind }

// Local reports whether local input owns this handle's transform.
func (h *Handle) Local() bool { return h.local }

// Position returns the handle's authoritative position.
func (h *Handle) Position() spacetime.Vec3 { return h.pos }

// Rotation returns the handle's authoritative orientation.
func (h *Handle) Rotation() spacetime.Vec3 { return h.rot }

// Record returns the most recently processed snapshot.
func (h *Handle) Record() spacetime.Record { return h.record }

// Destroyed reports whether the handle has been torn down.
func (h *Handle) Destroyed() bool { return h.destroyed }
