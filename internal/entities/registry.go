package entities

import (
	"context"
	"strconv"

	"quantaverse/client/internal/scene"
	"quantaverse/client/internal/spacetime"
	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
	"quantaverse/client/logging/entity"
)

// Destruction reasons recorded on despawn events.
const (
	reasonDeleted       = "deleted"
	reasonPartitionExit = "partition_exit"
	reasonTeardown      = "teardown"
)

const defaultTeleportThreshold = 8.0

// TickSource reports the current logical tick for event metadata.
type TickSource interface {
	CurrentTick() uint64
}

// Config carries the registry's collaborators.
type Config struct {
	Presenter scene.Presenter
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	Ticks     TickSource

	// LocalIdentity yields the transient identity the store assigned this
	// connection. Read per row event: it changes across reconnects.
	LocalIdentity func() spacetime.Identity

	// PartitionRadius is handed to the presenter on initialization.
	PartitionRadius float64

	// TeleportThreshold is the transform discrepancy, in world units, past
	// which a snapshot overrides the local-authority handle.
	TeleportThreshold float64
}

// Registry reconciles remote row events, filtered by the current spatial
// partition, into live actor handles. It is touched only from the logical
// thread; last processed event wins, no reordering compensation.
type Registry struct {
	cfg       Config
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	pub       logging.Publisher
	partition spacetime.WorldCoords
	handles   map[uint64]*Handle
	localID   uint64
}

// NewRegistry constructs an empty registry tracking the given partition.
func NewRegistry(cfg Config, partition spacetime.WorldCoords) *Registry {
	if cfg.TeleportThreshold <= 0 {
		cfg.TeleportThreshold = defaultTeleportThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Registry{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		pub:       pub,
		partition: partition,
		handles:   make(map[uint64]*Handle),
	}
}

// Partition returns the spatial bucket the registry mirrors.
func (r *Registry) Partition() spacetime.WorldCoords {
	return r.partition
}

// Handle returns the live handle for id, if any.
func (r *Registry) Handle(id uint64) (*Handle, bool) {
	h, ok := r.handles[id]
	if !ok || h.destroyed {
		return nil, false
	}
	return h, true
}

// LocalHandle returns the handle flagged local authority, if any.
func (r *Registry) LocalHandle() (*Handle, bool) {
	if r.localID == 0 {
		return nil, false
	}
	return r.Handle(r.localID)
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	count := 0
	for _, h := range r.handles {
		if !h.destroyed {
			count++
		}
	}
	return count
}

// ApplyInsert creates a handle for a qualifying insert. Rows outside the
// current partition are ignored; a second insert for a live id is logged and
// dropped (remote stores may redeliver on reconnect).
func (r *Registry) ApplyInsert(record spacetime.Record) {
	if record.Partition() != r.partition {
		return
	}
	id := record.StableID()
	if existing, ok := r.handles[id]; ok {
		if !existing.destroyed {
			r.metrics.Add(logging.MetricDuplicatesIgnored, 1)
			r.logger.Printf("ignoring duplicate insert for %s %d", record.RecordKind(), id)
			entity.DuplicateIgnored(context.Background(), r.pub, r.tick(), r.ref(record))
			return
		}
		// Stale entry from an earlier destroy; prune before reclaiming.
		delete(r.handles, id)
	}

	local := r.isLocal(record)
	handle := newHandle(record, local)

	// Claim the id before presenter initialization so a duplicate insert
	// observed in the same processing pass sees it taken.
	r.handles[id] = handle

	if err := r.cfg.Presenter.Initialize(record, local, r.cfg.PartitionRadius); err != nil {
		// Fatal for this one entity only: roll back the entry, release
		// whatever the presenter partially built, keep processing.
		delete(r.handles, id)
		r.cfg.Presenter.Destroy(id)
		r.metrics.Add(logging.MetricSpawnFailures, 1)
		r.logger.Printf("presenter rejected %s %d: %v", record.RecordKind(), id, err)
		entity.SpawnFailed(context.Background(), r.pub, r.tick(), r.ref(record), entity.FailurePayload{Reason: err.Error()})
		return
	}

	if local {
		r.localID = id
	}
	r.metrics.Add(logging.MetricRowsApplied, 1)
	entity.ActorSpawned(context.Background(), r.pub, r.tick(), r.ref(record), entity.SpawnPayload{
		Partition:  record.Partition().String(),
		Local:      local,
		RecordKind: record.RecordKind(),
	})
}

// ApplyUpdate reconciles a replacement snapshot against the partition filter
// and the authority rules.
func (r *Registry) ApplyUpdate(old, new spacetime.Record) {
	wasIn := old.Partition() == r.partition
	isIn := new.Partition() == r.partition

	switch {
	case wasIn && !isIn:
		// Partition exit behaves like a delete.
		if handle, ok := r.Handle(new.StableID()); ok {
			r.metrics.Add(logging.MetricPartitionDepartures, 1)
			r.destroy(handle, reasonPartitionExit)
		}
	case !wasIn && isIn:
		// Partition entry behaves like an insert.
		r.ApplyInsert(new)
	case wasIn && isIn:
		r.updateInPlace(new)
	}
}

func (r *Registry) updateInPlace(record spacetime.Record) {
	handle, ok := r.Handle(record.StableID())
	if !ok {
		// The insert never reached us; last processed wins, so adopt the
		// snapshot as if it had.
		r.ApplyInsert(record)
		return
	}

	handle.record = record
	r.metrics.Add(logging.MetricRowsApplied, 1)

	// Ownership can move between identities on a live row: a login rebinds
	// an existing player row to this connection, and an eviction takes it
	// away again. Authority follows the owner.
	if local := r.isLocal(record); local != handle.local {
		handle.local = local
		if local {
			r.localID = handle.id
		} else if r.localID == handle.id {
			r.localID = 0
		}
	}

	if !handle.local {
		// Remote authority: the snapshot is ground truth.
		handle.pos = record.Position()
		handle.rot = record.Rotation()
		r.cfg.Presenter.UpdateData(record)
		return
	}

	// Local authority keeps its own transform unless the server has moved
	// us far enough that this must be a forced teleport.
	distance := handle.pos.Distance(record.Position())
	if distance <= r.cfg.TeleportThreshold {
		return
	}
	handle.pos = record.Position()
	handle.rot = record.Rotation()
	r.cfg.Presenter.UpdateData(record)
	entity.ForcedTeleport(context.Background(), r.pub, r.tick(), r.ref(record), entity.TeleportPayload{Distance: distance})
}

// ApplyDelete destroys the handle for the record, if one is live.
func (r *Registry) ApplyDelete(record spacetime.Record) {
	handle, ok := r.Handle(record.StableID())
	if !ok {
		return
	}
	r.destroy(handle, reasonDeleted)
}

// SetLocalTransform drives the local-authority handle from input. Remote
// handles never accept it.
func (r *Registry) SetLocalTransform(pos, rot spacetime.Vec3) bool {
	handle, ok := r.LocalHandle()
	if !ok {
		return false
	}
	handle.pos = pos
	handle.rot = rot
	return true
}

// SetPartition switches the registry to a new spatial bucket, tearing down
// every handle from the previous one.
func (r *Registry) SetPartition(partition spacetime.WorldCoords) {
	if partition == r.partition {
		return
	}
	r.Teardown()
	r.partition = partition
}

// Teardown destroys every live handle and clears the map. Safe to call
// repeatedly; the second call is a no-op.
func (r *Registry) Teardown() {
	for _, handle := range r.handles {
		if !handle.destroyed {
			r.destroy(handle, reasonTeardown)
		}
	}
	r.handles = make(map[uint64]*Handle)
	r.localID = 0
}

func (r *Registry) destroy(handle *Handle, reason string) {
	handle.destroyed = true
	delete(r.handles, handle.id)
	if handle.id == r.localID {
		r.localID = 0
	}
	r.cfg.Presenter.Destroy(handle.id)
	entity.ActorDespawned(context.Background(), r.pub, r.tick(), logging.EntityRef{
		ID:   strconv.FormatUint(handle.id, 10),
		Kind: refKind(handle.kind),
	}, entity.DespawnPayload{Reason: reason})
}

func (r *Registry) isLocal(record spacetime.Record) bool {
	owner := record.Owner()
	if owner.IsZero() || r.cfg.LocalIdentity == nil {
		return false
	}
	return owner == r.cfg.LocalIdentity()
}

func (r *Registry) tick() uint64 {
	if r.cfg.Ticks == nil {
		return 0
	}
	return r.cfg.Ticks.CurrentTick()
}

func (r *Registry) ref(record spacetime.Record) logging.EntityRef {
	return logging.EntityRef{
		ID:   strconv.FormatUint(record.StableID(), 10),
		Kind: refKind(record.RecordKind()),
	}
}

func refKind(kind string) logging.EntityKind {
	switch kind {
	case spacetime.RecordKindPlayer:
		return logging.EntityKindActor
	case spacetime.RecordKindOrb:
		return logging.EntityKindOrb
	}
	return logging.EntityKindUnknown
}
