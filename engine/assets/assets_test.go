package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
)

func writeSPIRV(t *testing.T, dir, name string, words ...uint32) {
	t.Helper()
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadShaders(t *testing.T) {
	dir := t.TempDir()
	writeSPIRV(t, dir, "raygen.rgen.spv", loaders.SPIRVMagic, 0x00010500, 1)
	writeSPIRV(t, dir, "miss.rmiss.spv", loaders.SPIRVMagic, 0x00010500, 2)

	shaders, err := LoadShaders(dir, "raygen.rgen.spv", "miss.rmiss.spv")
	if err != nil {
		t.Fatalf("LoadShaders: %v", err)
	}
	if len(shaders) != 2 {
		t.Fatalf("loaded %d shaders", len(shaders))
	}
	if got := shaders["miss.rmiss.spv"]; len(got) != 3 || got[2] != 2 {
		t.Fatalf("miss words = %v", got)
	}
}

func TestLoadShadersRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	writeSPIRV(t, dir, "raygen.rgen.spv", loaders.SPIRVMagic, 1)
	writeSPIRV(t, dir, "bad.rchit.spv", 0xDEADBEEF, 1)

	_, err := LoadShaders(dir, "raygen.rgen.spv", "bad.rchit.spv")
	if !errors.Is(err, loaders.ErrNotSPIRV) {
		t.Fatalf("expected ErrNotSPIRV, got %v", err)
	}
}

func TestLoadShadersMissingFile(t *testing.T) {
	if _, err := LoadShaders(t.TempDir(), "nope.spv"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseSPIRVUnaligned(t *testing.T) {
	if _, err := loaders.ParseSPIRV([]byte{0x03, 0x02, 0x23, 0x07, 0x00}); !errors.Is(err, loaders.ErrNotSPIRV) {
		t.Fatalf("expected ErrNotSPIRV, got %v", err)
	}
	if _, err := loaders.ParseSPIRV(nil); !errors.Is(err, loaders.ErrNotSPIRV) {
		t.Fatalf("empty input: %v", err)
	}
}
