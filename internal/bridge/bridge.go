package bridge

import (
	"context"
	"fmt"
	"strings"

	"quantaverse/client/internal/entities"
	"quantaverse/client/internal/loop"
	"quantaverse/client/internal/session"
	"quantaverse/client/internal/spacetime"
	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
	"quantaverse/client/logging/lifecycle"
	"quantaverse/client/logging/network"
)

// benignPlayerExists is the reducer failure text the store returns when the
// enter request lost a race against an earlier one for the same account. The
// player row insert that caused the failure still reaches us, so the failure
// carries no information worth surfacing.
const benignPlayerExists = "already has a player"

// defaultPlayerCheckDelay is how many ticks after the subscription ack the
// bridge waits for the account's player row before concluding a login is
// needed. Initial sync rows ride the same queue as the ack, so one recheck
// covers ordering skew without a visible stall.
const defaultPlayerCheckDelay = 2

// subscribedTables is the single subscription the bridge issues on connect.
var subscribedTables = []string{
	spacetime.TablePlayer,
	spacetime.TableAccountIdentity,
	spacetime.TableQuantaOrb,
	spacetime.TableGameSettings,
}

// Config carries the bridge's collaborators.
type Config struct {
	Store    spacetime.Store
	Machine  *session.Machine
	Registry *entities.Registry
	Settings *spacetime.SettingsCache
	Pump     *loop.Pump

	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger

	// PlayerCheckDelay overrides the recheck delay, in ticks.
	PlayerCheckDelay uint64
}

// Bridge translates remote table events and reducer outcomes into session
// lifecycle events, and carries UI intents the other way as reducer calls.
// Every method and callback runs on the logical thread.
type Bridge struct {
	cfg     Config
	logger  telemetry.Logger
	metrics telemetry.Metrics
	pub     logging.Publisher

	identity           spacetime.Identity
	pendingUsername    string
	pendingDisplayName string
	pendingPassword    string
	localPlayerID      uint64
	playerSeen         bool
}

// New constructs a bridge and registers it with the store. Table events start
// flowing once the store connects and the subscription is acknowledged.
func New(cfg Config) (*Bridge, error) {
	if cfg.Store == nil || cfg.Machine == nil || cfg.Registry == nil || cfg.Pump == nil {
		return nil, fmt.Errorf("bridge requires a store, machine, registry, and pump")
	}
	if cfg.PlayerCheckDelay == 0 {
		cfg.PlayerCheckDelay = defaultPlayerCheckDelay
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

	b := &Bridge{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		pub:     pub,
	}
	cfg.Store.OnConnect(b.handleConnect)
	cfg.Store.OnDisconnect(b.handleDisconnect)
	return b, nil
}

// Identity returns the store-assigned identity for the current connection.
func (b *Bridge) Identity() spacetime.Identity {
	return b.identity
}

// LocalPlayerID returns the stable id of the account's player row, or zero
// before one has been seen.
func (b *Bridge) LocalPlayerID() uint64 {
	return b.localPlayerID
}

func (b *Bridge) handleConnect(identity spacetime.Identity) {
	b.identity = identity
	b.playerSeen = false
	b.localPlayerID = 0

	network.Connected(context.Background(), b.pub, b.tick(), network.ConnectionPayload{
		Identity: string(identity),
	})
	b.cfg.Machine.Publish(session.Event{Kind: session.EventConnectionEstablished})

	err := b.cfg.Store.Subscribe(subscribedTables, b.handleApplied, b.handleRow)
	if err != nil {
		b.logger.Printf("subscription request failed: %v", err)
		b.cfg.Machine.Publish(session.Event{Kind: session.EventSubscriptionFailed, Reason: err.Error()})
	}
}

func (b *Bridge) handleDisconnect(reason string) {
	network.Disconnected(context.Background(), b.pub, b.tick(), network.ConnectionPayload{Reason: reason})
	b.dropSession(reason)
}

// dropSession is the single exit path for a live session: every actor in the
// registry goes away and the connection-scoped state is cleared, so a later
// reconnect starts from nothing.
func (b *Bridge) dropSession(reason string) {
	b.cfg.Machine.Publish(session.Event{Kind: session.EventConnectionLost, Reason: reason})
	b.cfg.Registry.Teardown()
	b.identity = ""
	b.playerSeen = false
	b.localPlayerID = 0
	b.pendingUsername = ""
	b.pendingDisplayName = ""
	b.pendingPassword = ""
}

func (b *Bridge) handleApplied() {
	network.SubscriptionApplied(context.Background(), b.pub, b.tick(), network.SubscriptionPayload{
		Tables: subscribedTables,
	})
	b.cfg.Machine.Publish(session.Event{Kind: session.EventSubscriptionReady})

	if b.playerSeen {
		return
	}
	// The row handler may still publish the local-actor events between now
	// and the recheck; LoginRequired only fires if it never does.
	b.cfg.Pump.ScheduleAfter(b.cfg.PlayerCheckDelay, func() {
		if b.playerSeen || b.identity.IsZero() {
			return
		}
		b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginRequired})
	})
}

func (b *Bridge) handleRow(change spacetime.RowChange) {
	switch change.Table {
	case spacetime.TablePlayer:
		b.handlePlayerRow(change)
	case spacetime.TableQuantaOrb:
		b.handleOrbRow(change)
	case spacetime.TableAccountIdentity:
		b.handleAccountIdentityRow(change)
	case spacetime.TableGameSettings:
		if b.cfg.Settings != nil {
			b.cfg.Settings.Apply(change)
		}
	}
}

func (b *Bridge) handlePlayerRow(change spacetime.RowChange) {
	switch change.Op {
	case spacetime.RowInsert:
		row, ok := change.New.(spacetime.PlayerRow)
		if !ok {
			return
		}
		b.cfg.Registry.ApplyInsert(row)
		if b.ownRow(row) {
			b.markPlayerSeen(row, session.EventLocalActorCreated)
		}
	case spacetime.RowUpdate:
		oldRow, okOld := change.Old.(spacetime.PlayerRow)
		newRow, okNew := change.New.(spacetime.PlayerRow)
		if !okOld || !okNew {
			return
		}
		b.cfg.Registry.ApplyUpdate(oldRow, newRow)
		if !b.ownRow(oldRow) && b.ownRow(newRow) {
			// A logged-out player row was rebound to this connection.
			b.markPlayerSeen(newRow, session.EventLocalActorRestored)
		}
	case spacetime.RowDelete:
		row, ok := change.Old.(spacetime.PlayerRow)
		if !ok {
			return
		}
		b.cfg.Registry.ApplyDelete(row)
		if b.ownRow(row) {
			// The store evicted the session; nothing local can recover it,
			// and the remaining actors belong to a session that is over.
			b.dropSession("player row removed by store")
		}
	}
}

func (b *Bridge) handleOrbRow(change spacetime.RowChange) {
	switch change.Op {
	case spacetime.RowInsert:
		if row, ok := change.New.(spacetime.QuantaOrbRow); ok {
			b.cfg.Registry.ApplyInsert(row)
		}
	case spacetime.RowUpdate:
		oldRow, okOld := change.Old.(spacetime.QuantaOrbRow)
		newRow, okNew := change.New.(spacetime.QuantaOrbRow)
		if okOld && okNew {
			b.cfg.Registry.ApplyUpdate(oldRow, newRow)
		}
	case spacetime.RowDelete:
		if row, ok := change.Old.(spacetime.QuantaOrbRow); ok {
			b.cfg.Registry.ApplyDelete(row)
		}
	}
}

func (b *Bridge) handleAccountIdentityRow(change spacetime.RowChange) {
	if change.Op != spacetime.RowInsert {
		return
	}
	row, ok := change.New.(spacetime.AccountIdentityRow)
	if !ok || row.Identity != b.identity {
		return
	}

	// The identity link insert is the store's confirmation that the login
	// committed and bound this connection to the account.
	username := b.pendingUsername
	b.pendingPassword = ""
	lifecycle.LoginSucceeded(context.Background(), b.pub, b.tick(), lifecycle.LoginPayload{Username: username})
	b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginSuccessful, Username: username})
	b.cfg.Machine.Publish(session.Event{Kind: session.EventSessionCreated, Username: username})
}

func (b *Bridge) ownRow(row spacetime.PlayerRow) bool {
	return !b.identity.IsZero() && row.Identity == b.identity
}

func (b *Bridge) markPlayerSeen(row spacetime.PlayerRow, kind session.EventKind) {
	b.playerSeen = true
	b.localPlayerID = row.PlayerID
	b.cfg.Machine.Publish(session.Event{Kind: kind, ActorID: row.PlayerID, Username: row.Name})
	b.cfg.Machine.Publish(session.Event{Kind: session.EventLocalActorReady, ActorID: row.PlayerID})
}

// Reducer argument shapes, matching the store's parameter names.

type credentialArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type enterGameArgs struct {
	PlayerName string `json:"player_name"`
}

type positionArgs struct {
	Position spacetime.Vec3 `json:"position"`
	Rotation spacetime.Vec3 `json:"rotation"`
}

type collectOrbArgs struct {
	OrbID    uint64 `json:"orb_id"`
	PlayerID uint64 `json:"player_id"`
}

type transferArgs struct {
	FromPlayerID uint64 `json:"from_player_id"`
	ToPlayerID   uint64 `json:"to_player_id"`
	Amount       uint32 `json:"amount"`
}

// RequestLogin submits credentials. Confirmation arrives as an identity link
// row insert, not through the reducer outcome.
func (b *Bridge) RequestLogin(username, password string) error {
	if !b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginRequested, Username: username}) {
		return fmt.Errorf("login not permitted in state %s", b.cfg.Machine.Current())
	}
	b.pendingUsername = username
	return b.cfg.Store.CallReducer("login", credentialArgs{Username: username, Password: password}, b.handleOutcome)
}

// RequestRegistration creates an account and, once the store commits it, logs
// straight in with the same credentials. The display name seeds the enter
// prompt later; the store only learns it at enter time.
func (b *Bridge) RequestRegistration(username, displayName, password string) error {
	if !b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginRequested, Username: username}) {
		return fmt.Errorf("registration not permitted in state %s", b.cfg.Machine.Current())
	}
	b.pendingUsername = username
	b.pendingDisplayName = displayName
	b.pendingPassword = password
	return b.cfg.Store.CallReducer("register", credentialArgs{Username: username, Password: password}, b.handleOutcome)
}

// DisplayName returns the display name captured at registration, or "".
func (b *Bridge) DisplayName() string {
	return b.pendingDisplayName
}

// RequestEnterWorld asks the store to materialize a player for the account.
func (b *Bridge) RequestEnterWorld(playerName string) error {
	if !b.cfg.Machine.Publish(session.Event{Kind: session.EventEnterWorldRequested, Username: playerName}) {
		return fmt.Errorf("enter world not permitted in state %s", b.cfg.Machine.Current())
	}
	return b.cfg.Store.CallReducer("enter_game", enterGameArgs{PlayerName: playerName}, b.handleOutcome)
}

// PushLocalTransform moves the local-authority handle and streams the new
// transform to the store. Dropped when no local handle exists.
func (b *Bridge) PushLocalTransform(pos, rot spacetime.Vec3) error {
	if !b.cfg.Registry.SetLocalTransform(pos, rot) {
		return nil
	}
	return b.cfg.Store.CallReducer("update_player_position", positionArgs{Position: pos, Rotation: rot}, b.handleOutcome)
}

// CollectOrb asks the store to award an orb to the local player.
func (b *Bridge) CollectOrb(orbID uint64) error {
	if b.localPlayerID == 0 {
		return fmt.Errorf("no local player")
	}
	return b.cfg.Store.CallReducer("collect_quanta_orb", collectOrbArgs{OrbID: orbID, PlayerID: b.localPlayerID}, b.handleOutcome)
}

// TransferQuanta sends quanta from the local player to another.
func (b *Bridge) TransferQuanta(toPlayerID uint64, amount uint32) error {
	if b.localPlayerID == 0 {
		return fmt.Errorf("no local player")
	}
	args := transferArgs{FromPlayerID: b.localPlayerID, ToPlayerID: toPlayerID, Amount: amount}
	return b.cfg.Store.CallReducer("transfer_quanta", args, b.handleOutcome)
}

func (b *Bridge) handleOutcome(outcome spacetime.Outcome) {
	if outcome.Committed {
		if outcome.Reducer == "register" && b.pendingPassword != "" {
			// Registration alone does not bind the identity; chain the login.
			password := b.pendingPassword
			b.pendingPassword = ""
			if err := b.cfg.Store.CallReducer("login", credentialArgs{Username: b.pendingUsername, Password: password}, b.handleOutcome); err != nil {
				b.logger.Printf("login after registration failed to send: %v", err)
				b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginFailed, Reason: err.Error()})
			}
		}
		return
	}

	if outcome.Reducer == "enter_game" && strings.Contains(strings.ToLower(outcome.Reason), benignPlayerExists) {
		// Lost the enter race; the winning player row insert supersedes this.
		b.logger.Printf("enter_game raced an existing player row, ignoring")
		return
	}

	network.ReducerFailed(context.Background(), b.pub, b.tick(), network.ReducerPayload{
		Reducer: outcome.Reducer,
		Reason:  outcome.Reason,
	})

	switch outcome.Reducer {
	case "login":
		b.pendingPassword = ""
		lifecycle.LoginFailed(context.Background(), b.pub, b.tick(), lifecycle.LoginPayload{
			Username: b.pendingUsername,
			Reason:   outcome.Reason,
		})
		b.cfg.Machine.Publish(session.Event{Kind: session.EventLoginFailed, Reason: outcome.Reason})
	case "register":
		b.pendingPassword = ""
		b.cfg.Machine.Publish(session.Event{Kind: session.EventRegistrationFailed, Reason: outcome.Reason})
	case "enter_game":
		b.logger.Printf("enter_game rejected: %s", outcome.Reason)
	}
}

func (b *Bridge) tick() uint64 {
	return b.cfg.Pump.CurrentTick()
}
