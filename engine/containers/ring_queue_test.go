package containers

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestRingQueueFIFOAndWrap(t *testing.T) {
	q := NewRingQueue[int](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue on full queue = %v", err)
	}
	if v, _ := q.Dequeue(); v != 1 {
		t.Fatalf("Dequeue = %d", v)
	}
	if err := q.Enqueue(4); err != nil {
		t.Fatal(err)
	}
	if v, _ := q.Peek(); v != 2 {
		t.Fatalf("Peek = %d", v)
	}
	got := q.Drain()
	if len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("Drain = %v", got)
	}
	if _, err := q.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue = %v", err)
	}
}

func TestRingQueueMinimumSize(t *testing.T) {
	q := NewRingQueue[string](0)
	if err := q.Enqueue("a"); err != nil {
		t.Fatal(err)
	}
	if !q.IsFull() || q.Len() != 1 {
		t.Fatalf("len = %d full = %v", q.Len(), q.IsFull())
	}
}
