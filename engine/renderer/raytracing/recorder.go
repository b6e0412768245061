package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type CommandBufferState int

const (
	CommandBufferStateUnrecorded CommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateRecorded
	CommandBufferStateSubmitted
	CommandBufferStateStale
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferStateUnrecorded:
		return "unrecorded"
	case CommandBufferStateRecording:
		return "recording"
	case CommandBufferStateRecorded:
		return "recorded"
	case CommandBufferStateSubmitted:
		return "submitted"
	case CommandBufferStateStale:
		return "stale"
	}
	return "invalid"
}

// Dispatch is everything one frame's trace-and-copy sequence references.
type Dispatch struct {
	Pipeline        metadata.PipelineHandle
	Layout          metadata.PipelineLayoutHandle
	Set             metadata.DescriptorSetHandle
	SBT             *ShaderBindingTable
	Extent          metadata.Extent2D
	StorageImage    metadata.ImageHandle
	SwapchainImages []metadata.ImageHandle
}

// CommandRecorder records one command buffer per swapchain image and tracks
// each buffer's state.
type CommandRecorder struct {
	device  CommandDevice
	buffers []metadata.CommandBufferHandle
	states  []CommandBufferState
}

func NewCommandRecorder(device CommandDevice, count uint32) (*CommandRecorder, error) {
	r := &CommandRecorder{device: device}
	if err := r.Resize(count); err != nil {
		return nil, err
	}
	return r, nil
}

// Resize frees all buffers and allocates count new unrecorded ones.
func (r *CommandRecorder) Resize(count uint32) error {
	if len(r.buffers) == int(count) {
		return nil
	}
	r.Destroy()
	buffers, err := r.device.AllocateCommandBuffers(count)
	if err != nil {
		return core.NewResourceError("frame command buffers", "vkAllocateCommandBuffers", err)
	}
	r.buffers = buffers
	r.states = make([]CommandBufferState, count)
	return nil
}

func (r *CommandRecorder) Len() int {
	return len(r.buffers)
}

func (r *CommandRecorder) State(frame int) CommandBufferState {
	return r.states[frame]
}

func (r *CommandRecorder) Buffer(frame int) metadata.CommandBufferHandle {
	return r.buffers[frame]
}

func (r *CommandRecorder) checkFrame(frame int) error {
	if frame < 0 || frame >= len(r.buffers) {
		return core.NewPreconditionError("command buffer %d out of range [0,%d)", frame, len(r.buffers))
	}
	return nil
}

// BuildCommandBuffers fully records every buffer: begin, trace, copy, end.
// The caller makes sure none of them is still executing.
func (r *CommandRecorder) BuildCommandBuffers(d Dispatch) error {
	if len(d.SwapchainImages) != len(r.buffers) {
		return core.NewPreconditionError("%d swapchain images for %d command buffers", len(d.SwapchainImages), len(r.buffers))
	}
	for i := range r.buffers {
		if err := r.Begin(i); err != nil {
			return err
		}
		r.record(i, d)
		if err := r.End(i); err != nil {
			return err
		}
	}
	core.LogDebug("Recorded %d command buffers for %dx%d", len(r.buffers), d.Extent.Width, d.Extent.Height)
	return nil
}

// Begin resets the buffer if it holds an old recording and begins it.
func (r *CommandRecorder) Begin(frame int) error {
	if err := r.checkFrame(frame); err != nil {
		return err
	}
	if r.states[frame] == CommandBufferStateRecording {
		return core.NewPreconditionError("command buffer %d is already recording", frame)
	}
	if r.states[frame] != CommandBufferStateUnrecorded {
		if err := r.device.ResetCommandBuffer(r.buffers[frame]); err != nil {
			return core.NewResourceError("frame command buffer", "vkResetCommandBuffer", err)
		}
		r.states[frame] = CommandBufferStateUnrecorded
	}
	if err := r.device.BeginCommandBuffer(r.buffers[frame]); err != nil {
		return core.NewResourceError("frame command buffer", "vkBeginCommandBuffer", err)
	}
	r.states[frame] = CommandBufferStateRecording
	return nil
}

func (r *CommandRecorder) End(frame int) error {
	if err := r.checkFrame(frame); err != nil {
		return err
	}
	if r.states[frame] != CommandBufferStateRecording {
		return core.NewPreconditionError("command buffer %d ended while %s", frame, r.states[frame])
	}
	if err := r.device.EndCommandBuffer(r.buffers[frame]); err != nil {
		return core.NewResourceError("frame command buffer", "vkEndCommandBuffer", err)
	}
	r.states[frame] = CommandBufferStateRecorded
	return nil
}

// RebuildCommandBuffers records the trace-and-copy sequence into one
// buffer that the caller already began. It neither begins nor ends it.
func (r *CommandRecorder) RebuildCommandBuffers(frame int, d Dispatch) error {
	if err := r.checkFrame(frame); err != nil {
		return err
	}
	if r.states[frame] != CommandBufferStateRecording {
		return core.NewPreconditionError("command buffer %d must be recording, is %s", frame, r.states[frame])
	}
	if frame >= len(d.SwapchainImages) {
		return core.NewPreconditionError("no swapchain image for command buffer %d", frame)
	}
	r.record(frame, d)
	return nil
}

func (r *CommandRecorder) record(frame int, d Dispatch) {
	cmd := r.buffers[frame]
	swapchainImage := d.SwapchainImages[frame]
	raygen, miss, hit, callable := d.SBT.Regions()

	r.device.CmdBindRayTracingPipeline(cmd, d.Pipeline)
	r.device.CmdBindDescriptorSet(cmd, d.Layout, d.Set)
	r.device.CmdTraceRays(cmd, raygen, miss, hit, callable, d.Extent.Width, d.Extent.Height, 1)

	r.device.CmdImageLayoutBarrier(cmd, swapchainImage, metadata.ImageLayoutUndefined, metadata.ImageLayoutTransferDstOptimal)
	r.device.CmdImageLayoutBarrier(cmd, d.StorageImage, metadata.ImageLayoutGeneral, metadata.ImageLayoutTransferSrcOptimal)
	r.device.CmdCopyImage(cmd,
		d.StorageImage, metadata.ImageLayoutTransferSrcOptimal,
		swapchainImage, metadata.ImageLayoutTransferDstOptimal,
		d.Extent)
	r.device.CmdImageLayoutBarrier(cmd, swapchainImage, metadata.ImageLayoutTransferDstOptimal, metadata.ImageLayoutPresentSrc)
	r.device.CmdImageLayoutBarrier(cmd, d.StorageImage, metadata.ImageLayoutTransferSrcOptimal, metadata.ImageLayoutGeneral)
}

// MarkSubmitted records that the buffer was handed to the queue.
func (r *CommandRecorder) MarkSubmitted(frame int) error {
	if err := r.checkFrame(frame); err != nil {
		return err
	}
	switch r.states[frame] {
	case CommandBufferStateRecorded, CommandBufferStateSubmitted:
		r.states[frame] = CommandBufferStateSubmitted
		return nil
	}
	return core.NewPreconditionError("command buffer %d submitted while %s", frame, r.states[frame])
}

// MarkStale flags every recorded buffer for re-recording.
func (r *CommandRecorder) MarkStale() {
	for i, s := range r.states {
		if s != CommandBufferStateUnrecorded {
			r.states[i] = CommandBufferStateStale
		}
	}
}

// NeedsRecording reports whether the buffer must be recorded before submit.
func (r *CommandRecorder) NeedsRecording(frame int) bool {
	s := r.states[frame]
	return s == CommandBufferStateUnrecorded || s == CommandBufferStateStale
}

func (r *CommandRecorder) Destroy() {
	if len(r.buffers) > 0 {
		r.device.FreeCommandBuffers(r.buffers)
	}
	r.buffers = nil
	r.states = nil
}
