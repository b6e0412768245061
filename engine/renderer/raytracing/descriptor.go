package raytracing

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// DescriptorResources are the objects written into a pipeline's set. Buffers
// and the extra texture may be nil when the binding table has no slot for them.
type DescriptorResources struct {
	TLAS            metadata.AccelerationStructureHandle
	StorageImage    metadata.ImageViewHandle
	Uniform         *Buffer
	GeometryNodes   *Buffer
	GeometryIndices *Buffer
	SkinJoints      *Buffer
	ExtraTexture    *metadata.Texture
	Textures        []metadata.Texture
}

// DescriptorWriter owns the pool and the single descriptor set of a pipeline.
type DescriptorWriter struct {
	device   DescriptorDevice
	bindings BindingTable
	layout   metadata.DescriptorSetLayoutHandle

	pool          metadata.DescriptorPoolHandle
	set           metadata.DescriptorSetHandle
	variableCount uint32
}

// NewDescriptorWriter allocates a set for p sized to the pipeline's texture
// array.
func NewDescriptorWriter(device DescriptorDevice, p *Pipeline) (*DescriptorWriter, error) {
	w := &DescriptorWriter{device: device, bindings: p.Bindings, layout: p.SetLayout}
	if err := w.Allocate(p.Bindings.VariableCount()); err != nil {
		return nil, err
	}
	return w, nil
}

// Allocate replaces the pool and set with ones whose texture array holds
// variableCount images. Every binding must be written again afterwards.
func (w *DescriptorWriter) Allocate(variableCount uint32) error {
	if declared := w.bindings.VariableCount(); variableCount > declared {
		return core.NewPreconditionError("variable descriptor count %d exceeds the declared %d", variableCount, declared)
	}
	sizes := w.bindings.PoolSizes()
	pool, err := w.device.CreateDescriptorPool(sizes, 1)
	if err != nil {
		return core.NewResourceError("descriptor pool", "vkCreateDescriptorPool", err)
	}
	set, err := w.device.AllocateDescriptorSet(pool, w.layout, variableCount)
	if err != nil {
		w.device.DestroyDescriptorPool(pool)
		return core.NewResourceError("descriptor set", "vkAllocateDescriptorSets", err)
	}
	if w.pool != metadata.NullHandle {
		w.device.DestroyDescriptorPool(w.pool)
	}
	w.pool, w.set, w.variableCount = pool, set, variableCount
	core.LogDebug("Allocated descriptor set with %d variable descriptors", variableCount)
	return nil
}

func (w *DescriptorWriter) Set() metadata.DescriptorSetHandle {
	return w.set
}

func (w *DescriptorWriter) VariableCount() uint32 {
	return w.variableCount
}

func bufferWrite(set metadata.DescriptorSetHandle, b Binding, buf *Buffer) metadata.DescriptorWrite {
	return metadata.DescriptorWrite{
		Set:     set,
		Binding: b.Binding,
		Type:    b.Type,
		Buffers: []metadata.DescriptorBufferInfo{{Buffer: buf.Handle, Range: metadata.WholeSize}},
	}
}

// WriteAll writes every binding in one vkUpdateDescriptorSets call. The
// number of textures must equal the count the set was allocated with.
func (w *DescriptorWriter) WriteAll(res DescriptorResources) error {
	writes := make([]metadata.DescriptorWrite, 0, len(w.bindings))
	missing := func(b Binding) error {
		return core.NewPreconditionError("descriptor binding %d (%s) has no resource", b.Binding, b.Role)
	}
	for _, b := range w.bindings {
		switch b.Role {
		case RoleAccelerationStructure:
			if res.TLAS == metadata.NullHandle {
				return missing(b)
			}
			writes = append(writes, w.accelerationStructureWrite(res.TLAS))
		case RoleStorageImage:
			if res.StorageImage == metadata.NullHandle {
				return missing(b)
			}
			writes = append(writes, w.storageImageWrite(res.StorageImage))
		case RoleUniform, RoleGeometryNodes, RoleGeometryIndices, RoleSkinJoints:
			buf := map[BindingRole]*Buffer{
				RoleUniform:         res.Uniform,
				RoleGeometryNodes:   res.GeometryNodes,
				RoleGeometryIndices: res.GeometryIndices,
				RoleSkinJoints:      res.SkinJoints,
			}[b.Role]
			if buf == nil || buf.Handle == metadata.NullHandle {
				return missing(b)
			}
			writes = append(writes, bufferWrite(w.set, b, buf))
		case RoleExtraTexture:
			if res.ExtraTexture == nil {
				return missing(b)
			}
			writes = append(writes, metadata.DescriptorWrite{
				Set:     w.set,
				Binding: b.Binding,
				Type:    b.Type,
				Images:  []metadata.DescriptorImageInfo{textureInfo(*res.ExtraTexture)},
			})
		case RoleTextureArray:
			if uint32(len(res.Textures)) != w.variableCount {
				err := errors.Mark(
					errors.Newf("texture array: set allocated for %d descriptors, %d images written", w.variableCount, len(res.Textures)),
					core.ErrDescriptorCountMismatch)
				err = errors.Mark(err, core.ErrPrecondition)
				core.LogError(err.Error())
				return err
			}
			images := make([]metadata.DescriptorImageInfo, len(res.Textures))
			for i, t := range res.Textures {
				images[i] = textureInfo(t)
			}
			writes = append(writes, metadata.DescriptorWrite{
				Set:     w.set,
				Binding: b.Binding,
				Type:    b.Type,
				Images:  images,
			})
		}
	}
	w.device.UpdateDescriptorSets(writes)
	return nil
}

func textureInfo(t metadata.Texture) metadata.DescriptorImageInfo {
	return metadata.DescriptorImageInfo{Sampler: t.Sampler, View: t.View, Layout: metadata.ImageLayoutShaderReadOnlyOptimal}
}

func (w *DescriptorWriter) storageImageWrite(view metadata.ImageViewHandle) metadata.DescriptorWrite {
	b, _ := w.bindings.Find(RoleStorageImage)
	return metadata.DescriptorWrite{
		Set:     w.set,
		Binding: b.Binding,
		Type:    metadata.DescriptorTypeStorageImage,
		Images:  []metadata.DescriptorImageInfo{{View: view, Layout: metadata.ImageLayoutGeneral}},
	}
}

func (w *DescriptorWriter) accelerationStructureWrite(tlas metadata.AccelerationStructureHandle) metadata.DescriptorWrite {
	b, _ := w.bindings.Find(RoleAccelerationStructure)
	return metadata.DescriptorWrite{
		Set:                    w.set,
		Binding:                b.Binding,
		Type:                   metadata.DescriptorTypeAccelerationStructure,
		AccelerationStructures: []metadata.AccelerationStructureHandle{tlas},
	}
}

// WriteStorageImage rewrites only the storage image binding, as needed after a resize.
func (w *DescriptorWriter) WriteStorageImage(view metadata.ImageViewHandle) {
	w.device.UpdateDescriptorSets([]metadata.DescriptorWrite{w.storageImageWrite(view)})
}

// WriteAccelerationStructure rewrites only the TLAS binding, needed when an
// update had to reallocate the structure.
func (w *DescriptorWriter) WriteAccelerationStructure(tlas metadata.AccelerationStructureHandle) {
	w.device.UpdateDescriptorSets([]metadata.DescriptorWrite{w.accelerationStructureWrite(tlas)})
}

func (w *DescriptorWriter) Destroy() {
	if w.pool != metadata.NullHandle {
		w.device.DestroyDescriptorPool(w.pool)
	}
	w.pool, w.set, w.variableCount = metadata.NullHandle, metadata.NullHandle, 0
}
