package spacetime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"quantaverse/client/internal/loop"
	"quantaverse/client/internal/spacetime/proto"
	"quantaverse/client/internal/telemetry"
)

const defaultWriteWait = 10 * time.Second

// ConnConfig carries the dependencies a live store connection needs.
type ConnConfig struct {
	URL       string
	Pump      *loop.Pump
	Logger    telemetry.Logger
	WriteWait time.Duration
}

// Conn is the websocket-backed Store implementation. Network I/O lives on the
// read goroutine and the caller's write path; every registered callback is
// handed to the tick pump so the core only ever runs on the logical thread.
type Conn struct {
	cfg    ConnConfig
	logger telemetry.Logger
	pump   *loop.Pump

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu           sync.Mutex
	identity     Identity
	onConnect    []func(Identity)
	onDisconnect []func(string)
	onApplied    func()
	onRow        func(RowChange)
	pending      map[uint64]pendingCall

	reducerSeq atomic.Uint64
	dropped    atomic.Bool
	closed     atomic.Bool
}

type pendingCall struct {
	reducer  string
	onResult func(Outcome)
}

// NewConn constructs an unconnected store connection.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Conn{
		cfg:     cfg,
		logger:  logger,
		pump:    cfg.Pump,
		pending: make(map[uint64]pendingCall),
	}
}

// Dial opens the websocket and starts the read loop. The connect signal fires
// once the store assigns an identity, not when the socket opens.
func (c *Conn) Dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Conn) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) OnConnect(fn func(Identity)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

func (c *Conn) OnDisconnect(fn func(reason string)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.mu.Unlock()
}

func (c *Conn) Subscribe(tables []string, onApplied func(), onRow func(RowChange)) error {
	c.mu.Lock()
	c.onApplied = onApplied
	c.onRow = onRow
	c.mu.Unlock()

	data, err := proto.EncodeSubscribe(proto.Subscribe{Tables: tables})
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Conn) CallReducer(name string, args any, onResult func(Outcome)) error {
	seq := c.reducerSeq.Add(1)
	if onResult != nil {
		c.mu.Lock()
		c.pending[seq] = pendingCall{reducer: name, onResult: onResult}
		c.mu.Unlock()
	}

	data, err := proto.EncodeCallReducer(proto.CallReducer{Reducer: name, Seq: seq, Args: args})
	if err != nil {
		c.forgetPending(seq)
		return err
	}
	if err := c.write(data); err != nil {
		c.forgetPending(seq)
		return err
	}
	return nil
}

// Close tears the socket down. Safe to call repeatedly; the disconnect signal
// still fires exactly once, through the same path a transport drop takes.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn == nil {
		return nil
	}
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown")
	conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.cfg.WriteWait))
	return conn.Close()
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("store connection not established")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.signalDisconnect(err.Error())
			return
		}

		msg, err := proto.DecodeServerMessage(payload)
		if err != nil {
			c.logger.Printf("discarding malformed store frame: %v", err)
			continue
		}

		switch msg.Type {
		case proto.TypeIdentity:
			c.handleIdentity(msg)
		case proto.TypeSubscriptionApplied:
			c.handleApplied()
		case proto.TypeRowInsert, proto.TypeRowUpdate, proto.TypeRowDelete:
			c.handleRow(msg)
		case proto.TypeReducerResult:
			c.handleReducerResult(msg)
		default:
			c.logger.Printf("unknown store frame type %q", msg.Type)
		}
	}
}

func (c *Conn) handleIdentity(msg proto.ServerMessage) {
	identity := Identity(msg.Identity)
	c.mu.Lock()
	c.identity = identity
	handlers := make([]func(Identity), len(c.onConnect))
	copy(handlers, c.onConnect)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn := fn
		c.pump.Enqueue(func() { fn(identity) })
	}
}

func (c *Conn) handleApplied() {
	c.mu.Lock()
	onApplied := c.onApplied
	c.mu.Unlock()
	if onApplied == nil {
		return
	}
	c.pump.Enqueue(onApplied)
}

func (c *Conn) handleRow(msg proto.ServerMessage) {
	c.mu.Lock()
	onRow := c.onRow
	c.mu.Unlock()
	if onRow == nil {
		return
	}

	change, err := decodeRowChange(msg)
	if err != nil {
		c.logger.Printf("discarding row frame for table %q: %v", msg.Table, err)
		return
	}
	c.pump.Enqueue(func() { onRow(change) })
}

func (c *Conn) handleReducerResult(msg proto.ServerMessage) {
	c.mu.Lock()
	call, ok := c.pending[msg.Seq]
	if ok {
		delete(c.pending, msg.Seq)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Printf("reducer result for unknown seq %d (%s)", msg.Seq, msg.Reducer)
		return
	}

	outcome := Outcome{
		Reducer:   call.reducer,
		Committed: msg.Status == proto.StatusCommitted,
		Reason:    msg.Reason,
	}
	c.pump.Enqueue(func() { call.onResult(outcome) })
}

func (c *Conn) signalDisconnect(reason string) {
	if !c.dropped.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	handlers := make([]func(string), len(c.onDisconnect))
	copy(handlers, c.onDisconnect)
	c.pending = make(map[uint64]pendingCall)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn := fn
		c.pump.Enqueue(func() { fn(reason) })
	}
}

func (c *Conn) forgetPending(seq uint64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func decodeRowChange(msg proto.ServerMessage) (RowChange, error) {
	change := RowChange{Table: msg.Table}
	switch msg.Type {
	case proto.TypeRowInsert:
		change.Op = RowInsert
	case proto.TypeRowUpdate:
		change.Op = RowUpdate
	case proto.TypeRowDelete:
		change.Op = RowDelete
	}

	decode := func(raw json.RawMessage) (any, error) {
		if len(raw) == 0 {
			return nil, nil
		}
		return decodeRow(msg.Table, raw)
	}

	var err error
	switch change.Op {
	case RowInsert:
		change.New, err = decode(msg.Row)
	case RowUpdate:
		if change.Old, err = decode(msg.Old); err != nil {
			return change, err
		}
		change.New, err = decode(msg.Row)
	case RowDelete:
		change.Old, err = decode(msg.Row)
	}
	return change, err
}

func decodeRow(table string, raw json.RawMessage) (any, error) {
	switch table {
	case TablePlayer:
		var row PlayerRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		return row, nil
	case TableAccountIdentity:
		var row AccountIdentityRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		return row, nil
	case TableQuantaOrb:
		var row QuantaOrbRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		return row, nil
	case TableGameSettings:
		var row GameSettingRow
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, err
		}
		return row, nil
	default:
		return nil, fmt.Errorf("unsubscribed table %q", table)
	}
}
