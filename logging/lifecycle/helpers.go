package lifecycle

import (
	"context"

	"quantaverse/client/logging"
)

const (
	// EventStateChanged is emitted whenever the session machine commits a transition.
	EventStateChanged logging.EventType = "lifecycle.state_changed"
	// EventPublishRejected is emitted when a lifecycle event fails the per-state whitelist.
	EventPublishRejected logging.EventType = "lifecycle.publish_rejected"
	// EventLoginSucceeded is emitted when the remote store confirms a login.
	EventLoginSucceeded logging.EventType = "lifecycle.login_succeeded"
	// EventLoginFailed is emitted when a login or registration attempt is refused.
	EventLoginFailed logging.EventType = "lifecycle.login_failed"
)

// StateChangedPayload captures a committed transition.
type StateChangedPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger,omitempty"`
	Forced  bool   `json:"forced,omitempty"`
}

// PublishRejectedPayload captures the event kind refused and the state that refused it.
type PublishRejectedPayload struct {
	Kind  string `json:"kind"`
	State string `json:"state"`
}

// LoginPayload captures the account a login attempt was for.
type LoginPayload struct {
	Username string `json:"username"`
	Reason   string `json:"reason,omitempty"`
}

// StateChanged publishes a committed session transition.
func StateChanged(ctx context.Context, pub logging.Publisher, tick uint64, payload StateChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// PublishRejected publishes a whitelist rejection at warning severity.
func PublishRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload PublishRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPublishRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// LoginSucceeded publishes a confirmed login.
func LoginSucceeded(ctx context.Context, pub logging.Publisher, tick uint64, payload LoginPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLoginSucceeded,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}

// LoginFailed publishes a refused login or registration attempt.
func LoginFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload LoginPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLoginFailed,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}
