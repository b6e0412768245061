package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting        = errors.New("swapchain resized or recreated, booting")
	ErrResourceCreation        = errors.New("resource creation failed")
	ErrMissingCapability       = errors.New("required device capability not supported")
	ErrPrecondition            = errors.New("precondition violated")
	ErrNotBuilt                = errors.New("acceleration structure not built")
	ErrDescriptorCountMismatch = errors.New("variable descriptor count does not match written image count")
	ErrUnsupportedGeometry     = errors.New("unsupported geometry")
	ErrUnknown                 = errors.New("unknown")
)

// ResourceError reports a failed GPU object creation. Artifact names the object
// being built (e.g. "blas[teapot]") and Step the call that failed.
type ResourceError struct {
	Artifact string
	Step     string
	Result   string
	Err      error
}

func (e *ResourceError) Error() string {
	msg := fmt.Sprintf("failed to create %s: %s", e.Artifact, e.Step)
	if e.Result != "" {
		msg += " (" + e.Result + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResourceError) Unwrap() error { return e.Err }

// NewResourceError builds a ResourceError marked with ErrResourceCreation and
// logs it once.
func NewResourceError(artifact, step string, cause error) error {
	re := &ResourceError{Artifact: artifact, Step: step, Err: cause}
	var withResult interface{ ResultString() string }
	if errors.As(cause, &withResult) {
		re.Result = withResult.ResultString()
	}
	err := errors.Mark(re, ErrResourceCreation)
	LogError(re.Error())
	return err
}

func NewPreconditionError(format string, args ...interface{}) error {
	err := errors.Mark(errors.Newf(format, args...), ErrPrecondition)
	LogError(err.Error())
	return err
}
