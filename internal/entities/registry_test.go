package entities

import (
	"errors"
	"testing"

	"quantaverse/client/internal/scene"
	"quantaverse/client/internal/spacetime"
	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
)

const localIdentity = spacetime.Identity("c0ffee")

func newTestRegistry(t *testing.T) (*Registry, *scene.Headless, *logging.Metrics) {
	t.Helper()
	presenter := scene.NewHeadless()
	metrics := logging.NewMetrics()
	registry := NewRegistry(Config{
		Presenter:         presenter,
		Metrics:           telemetry.WrapMetrics(metrics),
		LocalIdentity:     func() spacetime.Identity { return localIdentity },
		PartitionRadius:   100,
		TeleportThreshold: 5,
	}, spacetime.WorldCoords{})
	return registry, presenter, metrics
}

func playerAt(id uint64, identity spacetime.Identity, world spacetime.WorldCoords, pos spacetime.Vec3) spacetime.PlayerRow {
	return spacetime.PlayerRow{
		Identity: identity,
		PlayerID: id,
		Name:     "tester",
		World:    world,
		Pos:      pos,
	}
}

func TestInsertCreatesHandle(t *testing.T) {
	registry, presenter, _ := newTestRegistry(t)

	registry.ApplyInsert(playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 1}))

	handle, ok := registry.Handle(1)
	if !ok {
		t.Fatalf("expected live handle for id 1")
	}
	if handle.Local() {
		t.Fatalf("remote row produced a local-authority handle")
	}
	if !presenter.Live(1) {
		t.Fatalf("presenter never initialized id 1")
	}
}

func TestInsertOutsidePartitionIgnored(t *testing.T) {
	registry, presenter, _ := newTestRegistry(t)

	registry.ApplyInsert(playerAt(1, "aa", spacetime.WorldCoords{X: 2}, spacetime.Vec3{}))

	if _, ok := registry.Handle(1); ok {
		t.Fatalf("row from another partition produced a handle")
	}
	if presenter.Count() != 0 {
		t.Fatalf("presenter touched for an out-of-partition row")
	}
}

func TestDuplicateInsertIgnored(t *testing.T) {
	registry, _, metrics := newTestRegistry(t)

	first := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 1})
	second := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 9})
	registry.ApplyInsert(first)
	registry.ApplyInsert(second)

	if registry.Count() != 1 {
		t.Fatalf("expected 1 handle, got %d", registry.Count())
	}
	handle, _ := registry.Handle(1)
	if handle.Position().X != 1 {
		t.Fatalf("duplicate insert overwrote the live handle")
	}
	if got := metrics.Value(logging.MetricDuplicatesIgnored); got != 1 {
		t.Fatalf("expected 1 ignored duplicate, got %d", got)
	}
}

func TestLocalAuthorityFlag(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	registry.ApplyInsert(playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{}))

	handle, ok := registry.LocalHandle()
	if !ok {
		t.Fatalf("expected a local handle")
	}
	if handle.ID() != 1 {
		t.Fatalf("expected local handle id 1, got %d", handle.ID())
	}
}

func TestInitializeFailureRollsBack(t *testing.T) {
	registry, presenter, metrics := newTestRegistry(t)
	presenter.InitializeErr = errors.New("out of resources")

	registry.ApplyInsert(playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{}))

	if _, ok := registry.Handle(1); ok {
		t.Fatalf("failed initialization left a live handle")
	}
	if got := metrics.Value(logging.MetricSpawnFailures); got != 1 {
		t.Fatalf("expected 1 spawn failure, got %d", got)
	}

	// A later retry for the same id must succeed once the presenter recovers.
	presenter.InitializeErr = nil
	registry.ApplyInsert(playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{}))
	if _, ok := registry.Handle(1); !ok {
		t.Fatalf("retry after failed initialization did not create a handle")
	}
}

func TestRemoteUpdateAppliesSnapshot(t *testing.T) {
	registry, presenter, _ := newTestRegistry(t)

	old := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 1})
	registry.ApplyInsert(old)

	updated := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 4})
	registry.ApplyUpdate(old, updated)

	handle, _ := registry.Handle(1)
	if handle.Position().X != 4 {
		t.Fatalf("expected snapshot position 4, got %v", handle.Position().X)
	}
	if !presenter.Live(1) {
		t.Fatalf("update destroyed the presenter handle")
	}
}

func TestLocalUpdateKeepsOwnTransform(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	old := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyInsert(old)
	registry.SetLocalTransform(spacetime.Vec3{X: 10}, spacetime.Vec3{})

	// Within the threshold the stale server snapshot must not move us back.
	near := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{X: 8})
	registry.ApplyUpdate(old, near)

	handle, _ := registry.Handle(1)
	if handle.Position().X != 10 {
		t.Fatalf("server snapshot overrode local transform: got %v", handle.Position().X)
	}
}

func TestLocalUpdateForcesTeleportPastThreshold(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	old := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyInsert(old)
	registry.SetLocalTransform(spacetime.Vec3{X: 10}, spacetime.Vec3{})

	far := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{X: 100})
	registry.ApplyUpdate(old, far)

	handle, _ := registry.Handle(1)
	if handle.Position().X != 100 {
		t.Fatalf("expected forced teleport to 100, got %v", handle.Position().X)
	}
}

func TestUpdateGainingOwnershipBecomesLocal(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	// Initial sync delivers the row under the previous connection's
	// identity; login rebinds it to ours.
	stale := playerAt(1, "stale", spacetime.WorldCoords{}, spacetime.Vec3{X: 2})
	registry.ApplyInsert(stale)
	if _, ok := registry.LocalHandle(); ok {
		t.Fatalf("stale-owned row produced a local handle")
	}

	rebound := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{X: 2})
	registry.ApplyUpdate(stale, rebound)

	handle, ok := registry.LocalHandle()
	if !ok {
		t.Fatalf("expected local handle after ownership moved to us")
	}
	if handle.ID() != 1 {
		t.Fatalf("expected local handle id 1, got %d", handle.ID())
	}
	if !registry.SetLocalTransform(spacetime.Vec3{X: 5}, spacetime.Vec3{}) {
		t.Fatalf("local transform rejected after gaining ownership")
	}
}

func TestUpdateLosingOwnershipBecomesRemote(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	mine := playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyInsert(mine)
	registry.SetLocalTransform(spacetime.Vec3{X: 10}, spacetime.Vec3{})

	evicted := playerAt(1, "other", spacetime.WorldCoords{}, spacetime.Vec3{X: 3})
	registry.ApplyUpdate(mine, evicted)

	if _, ok := registry.LocalHandle(); ok {
		t.Fatalf("handle kept local authority after losing ownership")
	}
	handle, _ := registry.Handle(1)
	if handle.Position().X != 3 {
		t.Fatalf("remote-again handle ignored the snapshot: got %v", handle.Position().X)
	}
	if registry.SetLocalTransform(spacetime.Vec3{X: 20}, spacetime.Vec3{}) {
		t.Fatalf("local transform accepted with no local handle")
	}
}

func TestUpdateLeavingPartitionDestroys(t *testing.T) {
	registry, presenter, metrics := newTestRegistry(t)

	old := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyInsert(old)

	moved := playerAt(1, "aa", spacetime.WorldCoords{X: 1}, spacetime.Vec3{})
	registry.ApplyUpdate(old, moved)

	if _, ok := registry.Handle(1); ok {
		t.Fatalf("handle survived leaving the partition")
	}
	if presenter.Live(1) {
		t.Fatalf("presenter handle survived leaving the partition")
	}
	if got := metrics.Value(logging.MetricPartitionDepartures); got != 1 {
		t.Fatalf("expected 1 partition departure, got %d", got)
	}
}

func TestUpdateEnteringPartitionCreates(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	old := playerAt(1, "aa", spacetime.WorldCoords{X: 1}, spacetime.Vec3{})
	moved := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyUpdate(old, moved)

	if _, ok := registry.Handle(1); !ok {
		t.Fatalf("row entering the partition did not create a handle")
	}
}

func TestUpdateWithoutHandleActsAsInsert(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	old := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{})
	updated := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{X: 3})
	registry.ApplyUpdate(old, updated)

	handle, ok := registry.Handle(1)
	if !ok {
		t.Fatalf("missed insert was not recovered from the update")
	}
	if handle.Position().X != 3 {
		t.Fatalf("expected recovered position 3, got %v", handle.Position().X)
	}
}

func TestInsertThenDeleteSameTick(t *testing.T) {
	registry, presenter, _ := newTestRegistry(t)

	row := playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{})
	registry.ApplyInsert(row)
	registry.ApplyDelete(row)

	if registry.Count() != 0 {
		t.Fatalf("expected no handles, got %d", registry.Count())
	}
	if presenter.Count() != 0 {
		t.Fatalf("expected no presenter handles, got %d", presenter.Count())
	}
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	registry.ApplyDelete(playerAt(9, "aa", spacetime.WorldCoords{}, spacetime.Vec3{}))
	if registry.Count() != 0 {
		t.Fatalf("delete of unknown id created state")
	}
}

func TestOrbsAreAlwaysRemote(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	registry.ApplyInsert(spacetime.QuantaOrbRow{OrbID: 40, Amount: 25})

	handle, ok := registry.Handle(40)
	if !ok {
		t.Fatalf("expected orb handle")
	}
	if handle.Local() {
		t.Fatalf("ownerless orb marked local authority")
	}
	if handle.Kind() != spacetime.RecordKindOrb {
		t.Fatalf("expected orb kind, got %s", handle.Kind())
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	registry, presenter, _ := newTestRegistry(t)

	registry.ApplyInsert(playerAt(1, localIdentity, spacetime.WorldCoords{}, spacetime.Vec3{}))
	registry.ApplyInsert(playerAt(2, "bb", spacetime.WorldCoords{}, spacetime.Vec3{}))
	registry.ApplyInsert(spacetime.QuantaOrbRow{OrbID: 3})

	registry.Teardown()
	registry.Teardown()

	if registry.Count() != 0 {
		t.Fatalf("expected empty registry after teardown, got %d", registry.Count())
	}
	if presenter.Count() != 0 {
		t.Fatalf("expected empty presenter after teardown, got %d", presenter.Count())
	}
	if _, ok := registry.LocalHandle(); ok {
		t.Fatalf("local handle survived teardown")
	}
}

func TestSetPartitionTearsDownAndRefills(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	registry.ApplyInsert(playerAt(1, "aa", spacetime.WorldCoords{}, spacetime.Vec3{}))
	registry.SetPartition(spacetime.WorldCoords{X: 2})

	if registry.Count() != 0 {
		t.Fatalf("handles survived the partition switch")
	}

	registry.ApplyInsert(playerAt(5, "cc", spacetime.WorldCoords{X: 2}, spacetime.Vec3{}))
	if _, ok := registry.Handle(5); !ok {
		t.Fatalf("row for the new partition rejected after switch")
	}
}

func TestSetLocalTransformWithoutLocalHandle(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	if registry.SetLocalTransform(spacetime.Vec3{X: 1}, spacetime.Vec3{}) {
		t.Fatalf("transform accepted with no local handle")
	}
}
