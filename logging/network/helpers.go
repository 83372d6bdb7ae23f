package network

import (
	"context"

	"quantaverse/client/logging"
)

const (
	// EventConnected is emitted when the transport finishes its handshake.
	EventConnected logging.EventType = "network.connected"
	// EventDisconnected is emitted when the transport drops, for any reason.
	EventDisconnected logging.EventType = "network.disconnected"
	// EventSubscriptionApplied is emitted when the store acknowledges the table subscription.
	EventSubscriptionApplied logging.EventType = "network.subscription_applied"
	// EventReducerFailed is emitted when a remote procedure fails with a non-benign reason.
	EventReducerFailed logging.EventType = "network.reducer_failed"
)

// ConnectionPayload captures the endpoint and assigned identity.
type ConnectionPayload struct {
	URL      string `json:"url,omitempty"`
	Identity string `json:"identity,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// SubscriptionPayload captures the tables covered by a subscription.
type SubscriptionPayload struct {
	Tables []string `json:"tables"`
}

// ReducerPayload captures a failed remote procedure call.
type ReducerPayload struct {
	Reducer string `json:"reducer"`
	Reason  string `json:"reason"`
}

// Connected publishes a transport connect event.
func Connected(ctx context.Context, pub logging.Publisher, tick uint64, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnected,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindConnection},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// Disconnected publishes a transport drop event.
func Disconnected(ctx context.Context, pub logging.Publisher, tick uint64, payload ConnectionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDisconnected,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindConnection},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SubscriptionApplied publishes a subscription acknowledgement.
func SubscriptionApplied(ctx context.Context, pub logging.Publisher, tick uint64, payload SubscriptionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriptionApplied,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindConnection},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ReducerFailed publishes a non-benign remote procedure failure.
func ReducerFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload ReducerPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReducerFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindConnection},
		Severity: logging.SeverityError,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
