package metadata

import (
	"encoding/binary"
	"math"
)

// GeometryNodeSize is the std430 size of one GeometryNode.
const GeometryNodeSize = 24

// NoTexture marks an unassigned texture slot in a GeometryNode.
const NoTexture int32 = -1

/**
 * @brief Per-geometry lookup record read by hit shaders. Entry i describes the
 * geometry at build-range index i of the owning BLAS.
 */
type GeometryNode struct {
	VertexBufferDeviceAddress uint64
	IndexBufferDeviceAddress  uint64
	TextureIndexBaseColor     int32
	TextureIndexOcclusion     int32
}

func (g GeometryNode) Put(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:], g.VertexBufferDeviceAddress)
	binary.LittleEndian.PutUint64(dst[8:], g.IndexBufferDeviceAddress)
	binary.LittleEndian.PutUint32(dst[16:], uint32(g.TextureIndexBaseColor))
	binary.LittleEndian.PutUint32(dst[20:], uint32(g.TextureIndexOcclusion))
}

func ReadGeometryNode(src []byte) GeometryNode {
	return GeometryNode{
		VertexBufferDeviceAddress: binary.LittleEndian.Uint64(src[0:]),
		IndexBufferDeviceAddress:  binary.LittleEndian.Uint64(src[8:]),
		TextureIndexBaseColor:     int32(binary.LittleEndian.Uint32(src[16:])),
		TextureIndexOcclusion:     int32(binary.LittleEndian.Uint32(src[20:])),
	}
}

func PackGeometryNodes(nodes []GeometryNode) []byte {
	out := make([]byte, len(nodes)*GeometryNodeSize)
	for i, n := range nodes {
		n.Put(out[i*GeometryNodeSize:])
	}
	return out
}

// InstanceRecordSize is sizeof(VkAccelerationStructureInstanceKHR).
const InstanceRecordSize = 64

/**
 * @brief One TLAS instance. CustomIndex and SBTRecordOffset are 24-bit fields.
 */
type InstanceRecord struct {
	Transform                      [12]float32
	CustomIndex                    uint32
	Mask                           uint8
	SBTRecordOffset                uint32
	Flags                          GeometryInstanceFlags
	AccelerationStructureReference uint64
}

func (r InstanceRecord) Put(dst []byte) {
	for i, f := range r.Transform {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(dst[48:], (r.CustomIndex&0xFFFFFF)|uint32(r.Mask)<<24)
	binary.LittleEndian.PutUint32(dst[52:], (r.SBTRecordOffset&0xFFFFFF)|uint32(r.Flags)<<24)
	binary.LittleEndian.PutUint64(dst[56:], r.AccelerationStructureReference)
}

func ReadInstanceRecord(src []byte) InstanceRecord {
	var r InstanceRecord
	for i := range r.Transform {
		r.Transform[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	w0 := binary.LittleEndian.Uint32(src[48:])
	w1 := binary.LittleEndian.Uint32(src[52:])
	r.CustomIndex = w0 & 0xFFFFFF
	r.Mask = uint8(w0 >> 24)
	r.SBTRecordOffset = w1 & 0xFFFFFF
	r.Flags = GeometryInstanceFlags(w1 >> 24)
	r.AccelerationStructureReference = binary.LittleEndian.Uint64(src[56:])
	return r
}

/**
 * @brief A drawable index range of a model, in model-global index/vertex space.
 */
type Primitive struct {
	FirstIndex    uint32
	IndexCount    uint32
	FirstVertex   uint32
	VertexCount   uint32
	MaterialIndex int32
}

type Material struct {
	Name             string
	BaseColorFactor  [4]float32
	BaseColorTexture int32
	OcclusionTexture int32
	/** @brief Alpha-tested material; its geometry is marked non-opaque so any-hit runs. */
	AlphaMask bool
}
