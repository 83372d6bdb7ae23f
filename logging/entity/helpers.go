package entity

import (
	"context"

	"quantaverse/client/logging"
)

const (
	// EventActorSpawned is emitted when the registry creates a live handle.
	EventActorSpawned logging.EventType = "entity.actor_spawned"
	// EventActorDespawned is emitted when a handle is destroyed.
	EventActorDespawned logging.EventType = "entity.actor_despawned"
	// EventDuplicateIgnored is emitted when an insert arrives for an id that is already live.
	EventDuplicateIgnored logging.EventType = "entity.duplicate_ignored"
	// EventSpawnFailed is emitted when presenter initialization fails for one entity.
	EventSpawnFailed logging.EventType = "entity.spawn_failed"
	// EventForcedTeleport is emitted when a snapshot overrides the local-authority transform.
	EventForcedTeleport logging.EventType = "entity.forced_teleport"
)

// SpawnPayload captures where and under whose authority a handle was created.
type SpawnPayload struct {
	Partition  string `json:"partition"`
	Local      bool   `json:"local"`
	RecordKind string `json:"recordKind"`
}

// DespawnPayload captures why a handle was destroyed.
type DespawnPayload struct {
	Reason string `json:"reason"`
}

// FailurePayload carries the error text for a spawn failure.
type FailurePayload struct {
	Reason string `json:"reason"`
}

// TeleportPayload captures the discrepancy that forced a local transform override.
type TeleportPayload struct {
	Distance float64 `json:"distance"`
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	event.Category = logging.CategoryEntity
	pub.Publish(ctx, event)
}

// ActorSpawned publishes a handle creation event.
func ActorSpawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventActorSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// ActorDespawned publishes a handle destruction event.
func ActorDespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DespawnPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventActorDespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}

// DuplicateIgnored publishes a duplicate-delivery guard hit.
func DuplicateIgnored(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	publish(ctx, pub, logging.Event{
		Type:     EventDuplicateIgnored,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
	})
}

// SpawnFailed publishes a per-entity presenter initialization failure.
func SpawnFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload FailurePayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventSpawnFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityError,
		Payload:  payload,
	})
}

// ForcedTeleport publishes a server-forced transform override on the local actor.
func ForcedTeleport(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TeleportPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventForcedTeleport,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Payload:  payload,
	})
}
