package proto

import (
	"encoding/json"
	"fmt"
)

const (
	// Version tracks the wire-protocol revision expected by the store gateway.
	Version = 1

	// Type identifiers for frames sent by the store.
	typeIdentity            = "identity"
	typeSubscriptionApplied = "subscriptionApplied"
	typeRowInsert           = "rowInsert"
	typeRowUpdate           = "rowUpdate"
	typeRowDelete           = "rowDelete"
	typeReducerResult       = "reducerResult"
)

// Exported aliases for inbound frame type identifiers.
const (
	TypeIdentity            = typeIdentity
	TypeSubscriptionApplied = typeSubscriptionApplied
	TypeRowInsert           = typeRowInsert
	TypeRowUpdate           = typeRowUpdate
	TypeRowDelete           = typeRowDelete
	TypeReducerResult       = typeReducerResult
)

// Client frame type identifiers.
const (
	TypeSubscribe   = "subscribe"
	TypeCallReducer = "callReducer"
)

// Reducer result status values.
const (
	StatusCommitted = "committed"
	StatusFailed    = "failed"
)

// ServerMessage captures an inbound frame from the store gateway.
type ServerMessage struct {
	Ver      int             `json:"ver,omitempty"`
	Type     string          `json:"type"`
	Identity string          `json:"identity,omitempty"`
	Tables   []string        `json:"tables,omitempty"`
	Table    string          `json:"table,omitempty"`
	Old      json.RawMessage `json:"old,omitempty"`
	Row      json.RawMessage `json:"row,omitempty"`
	Reducer  string          `json:"reducer,omitempty"`
	Seq      uint64          `json:"seq,omitempty"`
	Status   string          `json:"status,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

// DecodeServerMessage converts a raw websocket payload into a structured frame.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported store protocol version %d", msg.Ver)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("missing frame type")
	}
	return msg, nil
}

// Subscribe describes the single subscription spanning all tables of interest.
type Subscribe struct {
	Tables []string
}

// EncodeSubscribe renders a subscription request frame.
func EncodeSubscribe(msg Subscribe) ([]byte, error) {
	frame := struct {
		Ver    int      `json:"ver"`
		Type   string   `json:"type"`
		Tables []string `json:"tables"`
	}{
		Ver:    Version,
		Type:   TypeSubscribe,
		Tables: msg.Tables,
	}
	return json.Marshal(frame)
}

// CallReducer describes a remote procedure invocation.
type CallReducer struct {
	Reducer string
	Seq     uint64
	Args    any
}

// EncodeCallReducer renders a reducer invocation frame.
func EncodeCallReducer(msg CallReducer) ([]byte, error) {
	args, err := json.Marshal(msg.Args)
	if err != nil {
		return nil, fmt.Errorf("encode args for %s: %w", msg.Reducer, err)
	}
	frame := struct {
		Ver     int             `json:"ver"`
		Type    string          `json:"type"`
		Reducer string          `json:"reducer"`
		Seq     uint64          `json:"seq"`
		Args    json.RawMessage `json:"args,omitempty"`
	}{
		Ver:     Version,
		Type:    TypeCallReducer,
		Reducer: msg.Reducer,
		Seq:     msg.Seq,
		Args:    args,
	}
	return json.Marshal(frame)
}
