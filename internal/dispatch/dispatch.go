// Package dispatch implements the packet dispatcher and worker pool of
// spec section 4.G: a registered code→handler table, a fixed-size worker
// pool, and per-session ordering so a session's handler invocations observe
// submission order while different sessions run in parallel.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/duskforge/channelcore/internal/codec"
	"github.com/duskforge/channelcore/internal/session"
)

// Handler processes one dispatched packet for a session. It may suspend at
// persistence round-trips, inter-server RPC, or a scheduled-wait — the
// dispatcher's worker pool is the only place handler code is allowed to
// block.
type Handler func(ctx context.Context, s *session.Session, pkt codec.Packet) error

// EncryptedHandler runs once a session's handshake completes, e.g. to emit
// the channel-login prompt.
type EncryptedHandler func(ctx context.Context, s *session.Session)

// job is one posted unit of dispatched work.
type job struct {
	ctx context.Context
	s   *session.Session
	pkt codec.Packet
}

// sessionQueue is one session's FIFO work token: jobs for the same session
// run one at a time, in submission order; "active" marks whether a worker
// is currently draining it so a Post doesn't wake a second worker for the
// same session.
type sessionQueue struct {
	mu      sync.Mutex
	pending []job
	active  bool
}

// Dispatcher holds the registered handler table and the worker pool that
// executes dispatched work. Grounded on la2go's spawn.Manager registry
// (sync.Map-backed lookup table) for the handler-table shape; the
// per-session ordering/worker-pool machinery is new, since la2go dispatches
// synchronously inline instead (REDESIGN per spec section 9).
type Dispatcher struct {
	workers int

	mu       sync.Mutex
	handlers map[uint16]Handler
	queues   map[uint64]*sessionQueue

	onEncrypted EncryptedHandler

	sessionCh chan uint64
}

// New creates a Dispatcher with a fixed worker pool. workers<=0 defaults to
// the number of hardware threads, per spec 4.G.
func New(workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Dispatcher{
		workers:   workers,
		handlers:  make(map[uint16]Handler),
		queues:    make(map[uint64]*sessionQueue),
		sessionCh: make(chan uint64, 1024),
	}
}

// Register binds code to h. Handlers are registered at boot, before Run is
// called; the handler table is guarded by the dispatcher's mutex, so a
// later Register is also safe alongside dispatch traffic.
func (d *Dispatcher) Register(code uint16, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[code] = h
}

// OnEncrypted registers the hook invoked when a session's handshake
// completes (spec 4.E's KEY_EXCHANGE → ENCRYPTED transition enqueues an
// Encrypted message so the session runtime can emit a login prompt).
func (d *Dispatcher) OnEncrypted(h EncryptedHandler) {
	d.onEncrypted = h
}

// Run starts the fixed worker pool and blocks until ctx is canceled or a
// worker returns an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error { return d.worker(gctx) })
	}
	return g.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sid := <-d.sessionCh:
			d.drainSession(ctx, sid)
		}
	}
}

// Serve ranges over a session's inbound queue, translating Packet messages
// into dispatched jobs and handling the lifecycle messages (Encrypted,
// Timeout, Disconnect) directly. Intended to run in its own goroutine, one
// per connected session, started right after the session is created.
func (d *Dispatcher) Serve(ctx context.Context, s *session.Session) {
	defer d.Forget(s.ID())
	for msg := range s.Messages() {
		switch msg.Kind {
		case session.MsgPacket:
			d.Post(ctx, s, msg.Packet)
		case session.MsgEncrypted:
			s.SetState(session.Authenticating)
			if d.onEncrypted != nil {
				d.onEncrypted(ctx, s)
			}
		case session.MsgTimeout, session.MsgDisconnect:
			return
		}
	}
}

// Post enqueues pkt for s, preserving per-session submission order and
// waking a worker only if that session's queue wasn't already active.
func (d *Dispatcher) Post(ctx context.Context, s *session.Session, pkt codec.Packet) {
	q := d.queueFor(s.ID())

	q.mu.Lock()
	q.pending = append(q.pending, job{ctx: ctx, s: s, pkt: pkt})
	wake := !q.active
	if wake {
		q.active = true
	}
	q.mu.Unlock()

	if wake {
		d.sessionCh <- s.ID()
	}
}

func (d *Dispatcher) queueFor(sessionID uint64) *sessionQueue {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[sessionID]
	if !ok {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	return q
}

// Forget drops a session's queue once it disconnects, so a long-lived
// dispatcher doesn't accumulate empty queues across its lifetime.
func (d *Dispatcher) Forget(sessionID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.queues, sessionID)
}

// drainSession runs every pending job for sessionID in submission order,
// stopping if ctx is canceled mid-drain (pending jobs remain queued and the
// session stays marked active — a future Post against the same session
// would otherwise wake a second worker, so the remaining work is simply
// abandoned on shutdown along with the rest of the worker pool).
func (d *Dispatcher) drainSession(ctx context.Context, sessionID uint64) {
	d.mu.Lock()
	q := d.queues[sessionID]
	d.mu.Unlock()
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		j := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		d.run(j)
	}
}

// run executes one job's handler. A session closed before or during the
// job's cancellation-check points discards the job's effect rather than
// delivering it to a dead connection, per spec section 5's cancellation
// rule.
func (d *Dispatcher) run(j job) {
	if j.s.State() == session.Closed {
		return
	}

	d.mu.Lock()
	h, ok := d.handlers[j.pkt.Code]
	d.mu.Unlock()
	if !ok {
		slog.Warn("dispatch: no handler registered, dropping packet", "code", j.pkt.Code, "session", j.s.ID())
		return
	}

	if err := h(j.ctx, j.s, j.pkt); err != nil {
		slog.Warn("dispatch: handler error", "code", j.pkt.Code, "session", j.s.ID(), "error", fmt.Errorf("dispatch: %w", err))
	}
}
