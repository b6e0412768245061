package raytracing

import (
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// UniformBuffer is host coherent and mapped once; writes are visible to the
// next submitted command buffer without a barrier.
type UniformBuffer struct {
	buffer *Buffer
	data   metadata.UniformData
}

func NewUniformBuffer(alloc *Allocator) (*UniformBuffer, error) {
	buf, err := alloc.CreateBuffer("uniform", metadata.UniformDataSize,
		metadata.BufferUsageUniformBuffer,
		metadata.MemoryPropertyHostVisible|metadata.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}
	return &UniformBuffer{buffer: buf}, nil
}

func (u *UniformBuffer) Update(data metadata.UniformData) {
	u.data = data
	data.Put(u.buffer.Mapped())
}

// Bytes returns the mapped contents.
func (u *UniformBuffer) Bytes() []byte {
	return u.buffer.Mapped()[:metadata.UniformDataSize]
}

func (u *UniformBuffer) Data() metadata.UniformData {
	return u.data
}

func (u *UniformBuffer) Buffer() *Buffer {
	return u.buffer
}

func (u *UniformBuffer) Destroy(alloc *Allocator) {
	alloc.Destroy(u.buffer)
}
