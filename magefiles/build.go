//go:build mage

package main

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const (
	shaderDir  = "testbed/assets/shaders"
	binaryName = "pipecache"
)

var shaderExtensions = []string{".vert", ".frag", ".geom", ".tesc", ".tese", ".comp"}

type Build mg.Namespace

// Compiles every GLSL source of the testbed to SPIR-V next to the source.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the pipecache binary.
func (Build) Binary() error {
	_, err := executeCmd("go", withArgs("build", "-o", binaryName, "."), withStream())
	return err
}

func buildShaders() error {
	return filepath.WalkDir(shaderDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		for _, e := range shaderExtensions {
			if ext == e {
				out := strings.TrimSuffix(path, ext) + "." + strings.TrimPrefix(ext, ".") + ".spv"
				_, err := executeCmd("glslc", withArgs(path, "-o", out))
				return err
			}
		}
		return nil
	})
}
