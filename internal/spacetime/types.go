package spacetime

import (
	"fmt"
	"math"
)

// Identity is the transient per-connection credential the store assigns on
// connect. It is distinct from the stable ids carried by entity rows.
type Identity string

// IsZero reports whether no identity has been assigned yet.
func (i Identity) IsZero() bool { return i == "" }

// WorldCoords is the discrete 3-D partition bucket an entity row belongs to.
type WorldCoords struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (c WorldCoords) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Vec3 mirrors the store's float vector type.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Distance returns the euclidean distance between two vectors.
func (v Vec3) Distance(other Vec3) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Table names covered by the client subscription.
const (
	TablePlayer          = "player"
	TableAccountIdentity = "account_identity"
	TableQuantaOrb       = "quanta_orb"
	TableGameSettings    = "game_settings"
)

// Record kinds carried by reconciled rows.
const (
	RecordKindPlayer = "player"
	RecordKindOrb    = "orb"
)

// Record is the slice of a row the reconciliation registry operates on. Every
// notification is a full replacement snapshot, never a delta.
type Record interface {
	StableID() uint64
	Partition() WorldCoords
	Owner() Identity
	Position() Vec3
	Rotation() Vec3
	RecordKind() string
}

// PlayerRow mirrors the store's player table: one row per connected player,
// keyed by transient identity but carrying the stable player id.
type PlayerRow struct {
	Identity   Identity    `json:"identity"`
	PlayerID   uint64      `json:"playerId"`
	Name       string      `json:"name"`
	World      WorldCoords `json:"currentWorld"`
	Pos        Vec3        `json:"position"`
	Rot        Vec3        `json:"rotation"`
	LastUpdate int64       `json:"lastUpdate"`
}

func (r PlayerRow) StableID() uint64       { return r.PlayerID }
func (r PlayerRow) Partition() WorldCoords { return r.World }
func (r PlayerRow) Owner() Identity        { return r.Identity }
func (r PlayerRow) Position() Vec3         { return r.Pos }
func (r PlayerRow) Rotation() Vec3         { return r.Rot }
func (r PlayerRow) RecordKind() string     { return RecordKindPlayer }

// AccountIdentityRow links a transient identity to a persistent account. Its
// insert is the store's confirmation that a login attempt succeeded.
type AccountIdentityRow struct {
	Identity  Identity `json:"identity"`
	AccountID uint64   `json:"accountId"`
}

// QuantaOrbRow mirrors the store's emitted-orb table. Orbs carry no owner
// identity and are always remote authority.
type QuantaOrbRow struct {
	OrbID          uint64      `json:"orbId"`
	World          WorldCoords `json:"worldCoords"`
	Pos            Vec3        `json:"position"`
	Velocity       Vec3        `json:"velocity"`
	Frequency      float32     `json:"frequency"`
	Resonance      float32     `json:"resonance"`
	Amount         uint32      `json:"quantaAmount"`
	CreatedAtMilli int64       `json:"creationTime"`
	LifetimeMilli  uint32      `json:"lifetimeMs"`
}

func (r QuantaOrbRow) StableID() uint64       { return r.OrbID }
func (r QuantaOrbRow) Partition() WorldCoords { return r.World }
func (r QuantaOrbRow) Owner() Identity        { return "" }
func (r QuantaOrbRow) Position() Vec3         { return r.Pos }
func (r QuantaOrbRow) Rotation() Vec3         { return Vec3{} }
func (r QuantaOrbRow) RecordKind() string     { return RecordKindOrb }

// GameSettingRow mirrors the store's typed key-value settings table.
type GameSettingRow struct {
	Key         string `json:"settingKey"`
	ValueType   string `json:"valueType"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}
