package jobs

import (
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestJobSystemRunsEveryTask(t *testing.T) {
	js, err := NewJobSystem(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	var done, failed atomic.Int32
	for i := 0; i < 20; i++ {
		i := i
		js.Submit(Task{
			Name: "count",
			Run: func() error {
				if i%5 == 0 {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() { done.Add(1) },
			OnFailure:  func(error) { failed.Add(1) },
		})
	}
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if done.Load() != 16 || failed.Load() != 4 {
		t.Fatalf("done=%d failed=%d", done.Load(), failed.Load())
	}
	// a second shutdown is a no-op
	if err := js.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestNewJobSystemValidates(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("err = %v", err)
	}
}
