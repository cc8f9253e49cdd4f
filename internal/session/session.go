package session

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/duskforge/channelcore/internal/crypto"
	"github.com/duskforge/channelcore/internal/wire"
)

// Defaults per spec section 4.F: clients are expected to send a keep-alive
// every 10s; missing one starts a 30s countdown before the session times out.
const (
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultTimeout           = 30 * time.Second

	defaultMailboxSize  = 64
	defaultSendQueueSize = 256
)

// LogoutSaveFunc flushes all dirty session-owned objects in a single
// persistence transaction. See Close().
type LogoutSaveFunc func() error

// Session owns one connection's message queue, lifecycle state, and
// outgoing write pump, per spec section 4.F. Grounded on la2go
// gameserver.GameClient's writePump/sendCh/closeCh shape, generalized to the
// spec's explicit lifecycle states and keep-alive contract (la2go itself
// only relies on TCP read deadlines).
type Session struct {
	id     uint64
	conn   net.Conn
	cipher *crypto.BlockCipher

	state atomic.Int32

	mailbox   chan Message
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	pendingMu     sync.Mutex
	pending       []byte
	pendingWrites atomic.Int64

	lastActivityNano atomic.Int64

	keepAliveInterval time.Duration
	timeout           time.Duration

	ObjectIDs *ObjectIDAllocator

	logoutSave   LogoutSaveFunc
	doLogoutSave atomic.Bool
}

// New wraps an already-handshaken connection into a Session and starts its
// read loop, write pump, and keep-alive monitor. The caller is expected to
// have just completed wire.AcceptHandshake and to call NotifyEncrypted once
// the session is registered so it can emit its login prompt.
func New(id uint64, conn net.Conn, cipher *crypto.BlockCipher) *Session {
	s := &Session{
		id:                id,
		conn:              conn,
		cipher:            cipher,
		mailbox:           make(chan Message, defaultMailboxSize),
		sendCh:            make(chan []byte, defaultSendQueueSize),
		closeCh:           make(chan struct{}),
		keepAliveInterval: DefaultKeepAliveInterval,
		timeout:           DefaultTimeout,
		ObjectIDs:         NewObjectIDAllocator(),
	}
	s.state.Store(int32(Connecting))
	s.touch()

	s.wg.Add(3)
	go s.readLoop()
	go s.writePump()
	go s.keepAliveLoop()
	return s
}

// ID returns the session's server-assigned connection id.
func (s *Session) ID() uint64 { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// SetState transitions the session's lifecycle state. internal/dispatch
// uses this when the Encrypted message arrives (→ Authenticating) and
// internal/authflow after authentication completes (Authenticating →
// Active); Session itself drives the Draining/Closed transitions.
func (s *Session) SetState(st State) { s.state.Store(int32(st)) }

// SetKeepAlive overrides the default keep-alive interval and timeout. Must
// be called before the session observes any activity.
func (s *Session) SetKeepAlive(interval, timeout time.Duration) {
	s.keepAliveInterval = interval
	s.timeout = timeout
}

// SetLogoutSave registers the logout-save transaction and whether it should
// run on a graceful close (spec: "if logout_save is set").
func (s *Session) SetLogoutSave(fn LogoutSaveFunc, enabled bool) {
	s.logoutSave = fn
	s.doLogoutSave.Store(enabled)
}

// Messages returns the session's inbound message queue for a dispatcher to
// range over. WaitForMessage is the alternative consumer, used by scripted
// test clients.
func (s *Session) Messages() <-chan Message { return s.mailbox }

// NotifyEncrypted enqueues the Encrypted message the spec's KEY_EXCHANGE
// step requires once the session is ready to emit its login prompt.
func (s *Session) NotifyEncrypted() { s.postInbound(Message{Kind: MsgEncrypted}) }

func (s *Session) touch() { s.lastActivityNano.Store(time.Now().UnixNano()) }

func (s *Session) lastActivity() time.Time { return time.Unix(0, s.lastActivityNano.Load()) }

func (s *Session) postInbound(msg Message) {
	select {
	case s.mailbox <- msg:
		return
	default:
	}
	select {
	case s.mailbox <- msg:
	case <-s.closeCh:
	}
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			s.postInbound(Message{Kind: MsgDisconnect})
			s.Kill()
			return
		}
		s.touch()
		pkt, err := wire.DecodePacket(s.cipher, frame)
		if err != nil {
			slog.Warn("session: dropping bad frame", "session", s.id, "error", err)
			continue
		}
		s.postInbound(Message{Kind: MsgPacket, Packet: pkt})
	}
}

func (s *Session) writePump() {
	defer s.wg.Done()
	for {
		select {
		case frame, ok := <-s.sendCh:
			if !ok {
				return
			}
			_, err := s.conn.Write(frame)
			s.pendingWrites.Add(-1)
			if err != nil {
				slog.Warn("session: write failed", "session", s.id, "error", err)
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// keepAliveLoop tracks idle time since the last received frame. Missing one
// keep-alive interval starts a countdown; expiring the countdown posts
// Timeout and drives the session into a graceful, logout-saving close.
func (s *Session) keepAliveLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	var missedAt time.Time
	for {
		select {
		case <-ticker.C:
			idle := time.Since(s.lastActivity())
			switch {
			case idle < s.keepAliveInterval:
				missedAt = time.Time{}
			case missedAt.IsZero():
				missedAt = time.Now()
			case time.Since(missedAt) >= s.timeout:
				s.postInbound(Message{Kind: MsgTimeout})
				s.doLogoutSave.Store(true)
				s.Close()
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// QueuePacket encodes p and buffers it for the next FlushOutgoing instead of
// writing it immediately.
func (s *Session) QueuePacket(code uint16, body []byte) {
	frame := wire.FrameBytes(wire.EncodePacket(s.cipher, code, body))
	s.pendingMu.Lock()
	s.pending = append(s.pending, frame...)
	s.pendingMu.Unlock()
}

// FlushOutgoing pushes any buffered packets onto the write pump as a single
// batched write, forcing immediate transmission.
func (s *Session) FlushOutgoing() {
	s.pendingMu.Lock()
	batch := s.pending
	s.pending = nil
	s.pendingMu.Unlock()
	if len(batch) == 0 {
		return
	}
	s.pendingWrites.Add(1)
	select {
	case s.sendCh <- batch:
	case <-s.closeCh:
		s.pendingWrites.Add(-1)
	}
}

// SendPacket queues p and flushes immediately.
func (s *Session) SendPacket(code uint16, body []byte) {
	s.QueuePacket(code, body)
	s.FlushOutgoing()
}

// WaitForMessage dequeues messages until filter reports done, a
// disconnect/timeout is observed (Failure), or timeout elapses (Timeout).
// Used by scripted test clients, not by the production dispatcher (which
// ranges over Messages() instead).
func (s *Session) WaitForMessage(filter Filter, timeout time.Duration) WaitStatus {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case msg := <-s.mailbox:
			if msg.Kind == MsgDisconnect || msg.Kind == MsgTimeout {
				return WaitFailure
			}
			if status, done := filter(msg); done {
				return status
			}
		case <-deadline.C:
			return WaitTimeout
		case <-s.closeCh:
			return WaitFailure
		}
	}
}

// Close transitions the session to Draining, waits for the outgoing queue
// to drain, runs logout-save if configured, then transitions to Closed.
// Safe to call from within the session's own loops (readLoop/keepAliveLoop)
// as well as externally; it never waits on those loops' own goroutines.
func (s *Session) Close() error { return s.shutdown(true) }

// Kill is the emergency variant of Close: it skips logout-save and closes
// immediately.
func (s *Session) Kill() error { return s.shutdown(false) }

func (s *Session) shutdown(graceful bool) error {
	var saveErr error
	s.closeOnce.Do(func() {
		s.SetState(Draining)
		if graceful {
			s.drainOutgoing()
			if s.doLogoutSave.Load() && s.logoutSave != nil {
				if err := s.logoutSave(); err != nil {
					saveErr = fmt.Errorf("session: logout save: %w", err)
					slog.Warn("session: logout save failed", "session", s.id, "error", saveErr)
				}
			}
		}
		close(s.closeCh)
		_ = s.conn.Close()
		s.SetState(Closed)
	})
	return saveErr
}

// Wait blocks until the session's read loop, write pump, and keep-alive
// monitor have all exited. Must be called from a goroutine other than those
// three (e.g. the listener's accept loop cleaning up a finished session),
// never from within Close/Kill itself.
func (s *Session) Wait() { s.wg.Wait() }

// drainOutgoing flushes anything still buffered by QueuePacket, then blocks
// until every queued and in-flight write has left the write pump, per
// Close()'s "waits for the outgoing queue to drain" contract.
func (s *Session) drainOutgoing() {
	s.FlushOutgoing()
	for s.pendingWrites.Load() > 0 || len(s.sendCh) > 0 {
		time.Sleep(time.Millisecond)
	}
}
