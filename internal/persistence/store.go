package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// generalKey is the bookkeeping key for the null-keyed "general" change set,
// grounded on the original's NULLUUID sentinel.
const generalKey = ""

// Store queues change sets and commits them to Postgres. Grounded on
// la2go's DB type (pool wrapper) and PlayerPersistenceService's
// single-transaction-per-save shape, generalized from a fixed save
// sequence into an arbitrary caller-supplied change set.
type Store struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	queue map[string]*ChangeSet
}

// New connects to Postgres and returns a Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: pinging: %w", err)
	}
	return &Store{pool: pool, queue: make(map[string]*ChangeSet)}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgx pool. RunMigrations does not use it; it
// opens its own database/sql connection from the DSN.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// QueueChangeSet merges cs into the pending queue entry for its
// TransactionUUID, creating one if none is queued yet. Safe to call from
// any goroutine; queued operations are not visible to readers until a
// ProcessTransactionQueue commits them.
func (s *Store) QueueChangeSet(cs *ChangeSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.queue[cs.TransactionUUID]
	if !ok {
		s.queue[cs.TransactionUUID] = &ChangeSet{TransactionUUID: cs.TransactionUUID, ops: append([]entry(nil), cs.ops...)}
		return
	}
	existing.merge(cs)
}

// QueueInsert, QueueUpdate, and QueueDelete are convenience wrappers that
// queue a single-operation change set under transactionUUID.
func (s *Store) QueueInsert(transactionUUID string, rec Record) {
	cs := NewChangeSet(transactionUUID)
	cs.Insert(rec)
	s.QueueChangeSet(cs)
}

func (s *Store) QueueUpdate(transactionUUID string, rec Record) {
	cs := NewChangeSet(transactionUUID)
	cs.Update(rec)
	s.QueueChangeSet(cs)
}

func (s *Store) QueueDelete(transactionUUID string, rec Record) {
	cs := NewChangeSet(transactionUUID)
	cs.Delete(rec)
	s.QueueChangeSet(cs)
}

// ProcessTransactionQueue drains the entire pending queue under a single
// lock, then commits the general (null-keyed) change set first, followed
// by the rest in arbitrary order. Failed transactions return their uuid
// for the caller's own retry policy — a failed commit never blocks the
// other queued transactions from being attempted.
func (s *Store) ProcessTransactionQueue(ctx context.Context) []string {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return nil
	}
	queue := s.queue
	s.queue = make(map[string]*ChangeSet)
	s.mu.Unlock()

	var failed []string
	for _, uuid := range drainOrder(queue) {
		cs := queue[uuid]
		if err := s.ProcessChangeSet(ctx, cs); err != nil {
			slog.Error("persistence: change set failed", "transaction", uuid, "error", err)
			failed = append(failed, uuid)
		}
	}
	return failed
}

// drainOrder returns queue's keys with the general (null-keyed) transaction
// first, followed by the rest in arbitrary order — split out from
// ProcessTransactionQueue so the ordering rule can be tested without a
// database connection.
func drainOrder(queue map[string]*ChangeSet) []string {
	order := make([]string, 0, len(queue))
	if _, ok := queue[generalKey]; ok {
		order = append(order, generalKey)
	}
	for uuid := range queue {
		if uuid == generalKey {
			continue
		}
		order = append(order, uuid)
	}
	return order
}

// ProcessChangeSet commits cs in a single Postgres transaction: every
// insert, update, and delete either all land or none do.
func (s *Store) ProcessChangeSet(ctx context.Context, cs *ChangeSet) error {
	if cs == nil || len(cs.ops) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persistence: begin transaction %q: %w", cs.TransactionUUID, err)
	}
	defer func() {
		if rerr := tx.Rollback(ctx); rerr != nil && rerr != pgx.ErrTxClosed {
			slog.Error("persistence: rollback failed", "transaction", cs.TransactionUUID, "error", rerr)
		}
	}()

	for _, e := range cs.ops {
		var err error
		switch e.op {
		case OpInsert:
			_, err = tx.Exec(ctx,
				`INSERT INTO persisted_objects (uuid, kind, payload) VALUES ($1, $2, $3)`,
				e.rec.UUID, e.rec.Kind, e.rec.Payload)
		case OpUpdate:
			_, err = tx.Exec(ctx,
				`UPDATE persisted_objects SET kind = $2, payload = $3, updated_at = now() WHERE uuid = $1`,
				e.rec.UUID, e.rec.Kind, e.rec.Payload)
		case OpDelete:
			_, err = tx.Exec(ctx, `DELETE FROM persisted_objects WHERE uuid = $1`, e.rec.UUID)
		}
		if err != nil {
			return fmt.Errorf("persistence: applying op on %q: %w", e.rec.UUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("persistence: commit transaction %q: %w", cs.TransactionUUID, err)
	}
	return nil
}

// Load fetches a single persisted object's current payload by uuid.
// Returns nil, nil if the object doesn't exist.
func (s *Store) Load(ctx context.Context, uuid string) (*Record, error) {
	var rec Record
	rec.UUID = uuid
	err := s.pool.QueryRow(ctx,
		`SELECT kind, payload FROM persisted_objects WHERE uuid = $1`, uuid,
	).Scan(&rec.Kind, &rec.Payload)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: loading %q: %w", uuid, err)
	}
	return &rec, nil
}
