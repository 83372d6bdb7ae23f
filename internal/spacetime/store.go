package spacetime

// RowOp identifies the kind of row notification delivered by the store.
type RowOp int

const (
	RowInsert RowOp = iota
	RowUpdate
	RowDelete
)

func (op RowOp) String() string {
	switch op {
	case RowInsert:
		return "insert"
	case RowUpdate:
		return "update"
	case RowDelete:
		return "delete"
	}
	return "unknown"
}

// RowChange carries one decoded row notification. Old is populated for
// updates (the prior snapshot) and deletes (the removed snapshot); New is
// populated for inserts and updates.
type RowChange struct {
	Table string
	Op    RowOp
	Old   any
	New   any
}

// Outcome is the terminal result of one reducer invocation.
type Outcome struct {
	Reducer   string
	Committed bool
	Reason    string
}

// Store is the remote authoritative table store as seen by the client core.
// All callbacks are delivered on the logical thread via the tick pump.
type Store interface {
	// Identity returns the transient identity assigned on connect, or the
	// zero identity before the handshake completes.
	Identity() Identity

	// OnConnect registers a callback fired once the transport handshake
	// finishes and an identity has been assigned.
	OnConnect(fn func(Identity))

	// OnDisconnect registers a callback fired when the transport drops for
	// any reason. This is the core's only cancellation signal.
	OnDisconnect(fn func(reason string))

	// Subscribe issues the single subscription spanning all tables of
	// interest. onApplied fires once the store acknowledges it; onRow fires
	// for every subsequent row notification.
	Subscribe(tables []string, onApplied func(), onRow func(RowChange)) error

	// CallReducer invokes a remote procedure. onResult fires exactly once
	// with the Committed/Failed outcome.
	CallReducer(name string, args any, onResult func(Outcome)) error
}
