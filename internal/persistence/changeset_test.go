package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeSetMergeAppendsInSubmissionOrder(t *testing.T) {
	a := NewChangeSet("txn-1")
	a.Insert(Record{UUID: "1"})
	b := NewChangeSet("txn-1")
	b.Update(Record{UUID: "1"})
	b.Delete(Record{UUID: "2"})

	a.merge(b)

	require := []Op{OpInsert, OpUpdate, OpDelete}
	for i, op := range require {
		assert.Equal(t, op, a.ops[i].op)
	}
}

func TestQueueChangeSetMergesRepeatedQueueForSameTransaction(t *testing.T) {
	s := &Store{queue: make(map[string]*ChangeSet)}

	s.QueueInsert("txn-1", Record{UUID: "a"})
	s.QueueUpdate("txn-1", Record{UUID: "b"})

	assert.Len(t, s.queue, 1)
	assert.Len(t, s.queue["txn-1"].ops, 2)
	assert.Equal(t, OpInsert, s.queue["txn-1"].ops[0].op)
	assert.Equal(t, OpUpdate, s.queue["txn-1"].ops[1].op)
}

func TestDrainOrderProcessesGeneralTransactionFirst(t *testing.T) {
	queue := map[string]*ChangeSet{
		"txn-a":    NewChangeSet("txn-a"),
		generalKey: NewChangeSet(generalKey),
		"txn-b":    NewChangeSet("txn-b"),
	}

	order := drainOrder(queue)
	assert.Equal(t, generalKey, order[0], "the null-keyed general transaction must be processed first")
	assert.ElementsMatch(t, []string{generalKey, "txn-a", "txn-b"}, order)
}

func TestDrainOrderWithoutGeneralTransactionOmitsIt(t *testing.T) {
	queue := map[string]*ChangeSet{
		"txn-a": NewChangeSet("txn-a"),
	}
	order := drainOrder(queue)
	assert.Equal(t, []string{"txn-a"}, order)
}

func TestProcessTransactionQueueWithNoPendingWorkReturnsNoFailures(t *testing.T) {
	s := &Store{queue: make(map[string]*ChangeSet)}
	failed := s.ProcessTransactionQueue(nil)
	assert.Nil(t, failed)
}
