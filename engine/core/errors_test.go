package core

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestResourceErrorMarked(t *testing.T) {
	cause := errors.New("VK_ERROR_OUT_OF_DEVICE_MEMORY")
	err := NewResourceError("blas[cube]", "vkAllocateMemory", cause)

	if !errors.Is(err, ErrResourceCreation) {
		t.Fatal("resource error should be marked ErrResourceCreation")
	}
	var re *ResourceError
	if !errors.As(err, &re) {
		t.Fatal("expected *ResourceError in chain")
	}
	if re.Artifact != "blas[cube]" || re.Step != "vkAllocateMemory" {
		t.Fatalf("unexpected fields %+v", re)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should stay in the chain")
	}
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("frame %d not recording", 2)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatal("expected ErrPrecondition mark")
	}
	if errors.Is(err, ErrResourceCreation) {
		t.Fatal("precondition error must not look like a resource error")
	}
}
