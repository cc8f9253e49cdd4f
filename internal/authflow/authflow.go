// Package authflow implements the channel-login/authenticate packet pair
// that drives a session from AUTHENTICATING to ACTIVE, grounded on la2go's
// internal/login.Handler opcode handlers (RequestAuthLogin et al.),
// generalized from RSA-wrapped credentials + a session-key handshake down
// to this protocol's plain LOGIN/AUTH packet pair and persistence-backed
// account lookup.
package authflow

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/duskforge/channelcore/internal/codec"
	"github.com/duskforge/channelcore/internal/dispatch"
	"github.com/duskforge/channelcore/internal/persistence"
	"github.com/duskforge/channelcore/internal/session"
)

// Packet codes for the authentication exchange. Exact values are
// implementation-chosen but fixed per build, per spec section 4.E.
const (
	CodeLogin     uint16 = 0x0010
	CodeAuth      uint16 = 0x0011
	CodeKeepAlive uint16 = 0x0012
)

// Status values carried in LOGIN/AUTH reply bodies.
const (
	StatusSuccess uint16 = 0
	StatusFailure uint16 = 1
)

type pendingLogin struct {
	version    uint32
	sessionKey uint32
	username   string
}

// Flow wires the LOGIN/AUTH/KEEP_ALIVE handlers onto a dispatcher, tracking
// the in-flight LOGIN for each session until its matching AUTH arrives.
// Grounded on la2go's SessionManager, which holds a client's login-phase
// state (account, session key) across the same two-packet exchange before
// promoting it to a fully authenticated connection.
type Flow struct {
	store *persistence.Store

	mu      sync.Mutex
	pending map[uint64]pendingLogin
}

// New creates a Flow backed by store for account lookups. store may be nil
// for deployments that accept any username (development/test harness use),
// in which case AUTH succeeds for any non-empty hash once a LOGIN has been
// seen.
func New(store *persistence.Store) *Flow {
	return &Flow{store: store, pending: make(map[uint64]pendingLogin)}
}

// Register binds the authentication handlers onto d.
func (f *Flow) Register(d *dispatch.Dispatcher) {
	d.Register(CodeLogin, f.handleLogin)
	d.Register(CodeAuth, f.handleAuth)
	d.Register(CodeKeepAlive, f.handleKeepAlive)
}

func (f *Flow) handleLogin(ctx context.Context, s *session.Session, pkt codec.Packet) error {
	r := pkt.Reader()
	version, err := r.ReadU32()
	if err != nil {
		return fmt.Errorf("authflow: reading LOGIN version: %w", err)
	}
	sessionKey, err := r.ReadU32()
	if err != nil {
		return fmt.Errorf("authflow: reading LOGIN session_key: %w", err)
	}
	username, err := r.ReadString(codec.UTF8, false)
	if err != nil {
		return fmt.Errorf("authflow: reading LOGIN username: %w", err)
	}

	f.mu.Lock()
	f.pending[s.ID()] = pendingLogin{version: version, sessionKey: sessionKey, username: username}
	f.mu.Unlock()

	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU16(StatusSuccess)
	s.QueuePacket(CodeLogin, w.Bytes())
	s.FlushOutgoing()

	slog.Info("authflow: login received", "session", s.ID(), "username", username, "client_version", version)
	return nil
}

func (f *Flow) handleAuth(ctx context.Context, s *session.Session, pkt codec.Packet) error {
	r := pkt.Reader()
	hash, err := r.ReadString(codec.UTF8, false)
	if err != nil {
		return fmt.Errorf("authflow: reading AUTH hash: %w", err)
	}

	f.mu.Lock()
	login, ok := f.pending[s.ID()]
	f.mu.Unlock()
	status := StatusSuccess
	if !ok {
		slog.Warn("authflow: AUTH with no preceding LOGIN", "session", s.ID())
		status = StatusFailure
	} else if err := f.verify(ctx, login.username, hash); err != nil {
		slog.Warn("authflow: verification failed", "session", s.ID(), "username", login.username, "error", err)
		status = StatusFailure
	}

	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU16(status)
	s.QueuePacket(CodeAuth, w.Bytes())
	s.FlushOutgoing()

	if status == StatusSuccess {
		f.mu.Lock()
		delete(f.pending, s.ID())
		f.mu.Unlock()
		s.SetState(session.Active)
		slog.Info("authflow: session activated", "session", s.ID(), "username", login.username)
	}
	return nil
}

// verify checks hash against the stored account's password digest. A nil
// store accepts any non-empty hash — the pure-protocol test harness doesn't
// carry a real persistence backend.
func (f *Flow) verify(ctx context.Context, username, hash string) error {
	if f.store == nil {
		if hash == "" {
			return fmt.Errorf("empty credential hash")
		}
		return nil
	}

	rec, err := f.store.Load(ctx, accountUUID(username))
	if err != nil {
		return fmt.Errorf("looking up account %q: %w", username, err)
	}
	if rec == nil {
		return fmt.Errorf("unknown account %q", username)
	}
	var stored string
	if err := json.Unmarshal(rec.Payload, &stored); err != nil {
		return fmt.Errorf("decoding stored credential for %q: %w", username, err)
	}
	if stored != hash {
		return fmt.Errorf("credential mismatch for %q", username)
	}
	return nil
}

// accountUUID derives a stable persisted-object key for username, formatted
// as a name-based (SHA-1, version 5) UUID so it fits the uuid column of
// persisted_objects. Account records are opaque to the core, per spec; this
// is only a deterministic lookup key, not a security primitive.
func accountUUID(username string) string {
	sum := sha1.Sum([]byte("account:" + username))
	b := sum[:16]
	b[6] = (b[6] & 0x0f) | 0x50
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func (f *Flow) handleKeepAlive(ctx context.Context, s *session.Session, pkt codec.Packet) error {
	nonce, err := pkt.Reader().ReadU32()
	if err != nil {
		return fmt.Errorf("authflow: reading KEEP_ALIVE nonce: %w", err)
	}

	w := codec.NewWriter()
	defer codec.Put(w)
	w.WriteU32(nonce)
	s.QueuePacket(CodeKeepAlive, w.Bytes())
	s.FlushOutgoing()
	return nil
}

// Forget drops any in-flight LOGIN state for a disconnected session.
func (f *Flow) Forget(sessionID uint64) {
	f.mu.Lock()
	delete(f.pending, sessionID)
	f.mu.Unlock()
}
