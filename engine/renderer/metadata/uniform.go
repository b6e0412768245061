package metadata

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformDataSize is the std140 size of UniformData.
const UniformDataSize = 160

/**
 * @brief Per-frame camera and lighting data read by raygen, miss and hit shaders.
 */
type UniformData struct {
	ViewInverse mgl32.Mat4
	ProjInverse mgl32.Mat4
	LightPos    mgl32.Vec4
	Frame       int32
	// Reflection bounce limit read by the reflections variant.
	MaxDepth int32
}

func (u UniformData) Put(dst []byte) {
	putFloats(dst[0:], u.ViewInverse[:])
	putFloats(dst[64:], u.ProjInverse[:])
	putFloats(dst[128:], u.LightPos[:])
	binary.LittleEndian.PutUint32(dst[144:], uint32(u.Frame))
	binary.LittleEndian.PutUint32(dst[148:], uint32(u.MaxDepth))
}

func (u UniformData) Bytes() []byte {
	out := make([]byte, UniformDataSize)
	u.Put(out)
	return out
}

func putFloats(dst []byte, fs []float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}
