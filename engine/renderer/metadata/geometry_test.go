package metadata

import (
	"encoding/binary"
	"testing"
)

func TestInstanceRecordBitfields(t *testing.T) {
	r := InstanceRecord{
		CustomIndex:                    0x123456,
		Mask:                           0xFF,
		SBTRecordOffset:                2,
		Flags:                          GeometryInstanceTriangleFacingCullDisable,
		AccelerationStructureReference: 0xDEADBEEF00,
	}
	buf := make([]byte, InstanceRecordSize)
	r.Put(buf)

	if w := binary.LittleEndian.Uint32(buf[48:]); w != 0xFF123456 {
		t.Fatalf("customIndex/mask word = %#x", w)
	}
	if w := binary.LittleEndian.Uint32(buf[52:]); w != 0x01000002 {
		t.Fatalf("sbtOffset/flags word = %#x", w)
	}
	if got := ReadInstanceRecord(buf); got != r {
		t.Fatalf("read back %+v, want %+v", got, r)
	}
}

func TestInstanceRecordTruncatesCustomIndex(t *testing.T) {
	r := InstanceRecord{CustomIndex: 0x1FFFFFF, Mask: 0x01}
	buf := make([]byte, InstanceRecordSize)
	r.Put(buf)
	if got := ReadInstanceRecord(buf); got.CustomIndex != 0xFFFFFF || got.Mask != 0x01 {
		t.Fatalf("custom index overflowed into mask: %+v", got)
	}
}

func TestGeometryNodeNegativeTextureIndex(t *testing.T) {
	n := GeometryNode{VertexBufferDeviceAddress: 0x1000, IndexBufferDeviceAddress: 0x2000, TextureIndexBaseColor: NoTexture, TextureIndexOcclusion: 3}
	packed := PackGeometryNodes([]GeometryNode{n, n})
	if len(packed) != 2*GeometryNodeSize {
		t.Fatalf("packed length %d", len(packed))
	}
	if got := ReadGeometryNode(packed[GeometryNodeSize:]); got != n {
		t.Fatalf("second node %+v, want %+v", got, n)
	}
}
