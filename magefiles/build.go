//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const (
	shaderSourceDir   = "shaders/src"
	shaderCompiledDir = "shaders/compiled"
)

var shaderStages = []string{"*.rgen", "*.rmiss", "*.rchit", "*.rahit"}

// Compiles every ray tracing stage in shaders/src to SPIR-V in shaders/compiled.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the lumen binary.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/lumen", "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, pattern := range shaderStages {
		matches, err := filepath.Glob(filepath.Join(shaderSourceDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return errors.Newf("no shader sources in %s", shaderSourceDir)
	}
	if err := os.MkdirAll(shaderCompiledDir, 0o755); err != nil {
		return err
	}
	for _, src := range sources {
		out := filepath.Join(shaderCompiledDir, filepath.Base(src)+".spv")
		if _, err := executeCmd("glslc", withArgs("--target-env=vulkan1.2", src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
