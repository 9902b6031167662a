//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

const cacheFile = "cache.data"

type Run mg.Namespace

// Builds the testbed scene and saves its warmup cache.
func (Run) Record() error {
	fmt.Println("Recording warmup cache...")
	_, err := executeCmd("go", withArgs("run", ".", "record", "--shaders", shaderDir, "--output", cacheFile), withStream())
	return err
}

// Prints the entries of the recorded warmup cache.
func (Run) Inspect() error {
	mg.Deps(Run.Record)
	_, err := executeCmd("go", withArgs("run", ".", "inspect", cacheFile), withStream())
	return err
}

// Replays the recorded warmup cache on a headless device.
func (Run) Warmup() error {
	mg.Deps(Run.Record)
	_, err := executeCmd("go", withArgs("run", ".", "warmup", cacheFile), withStream())
	return err
}

// Runs the tests of every package.
func (Run) Test() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}
