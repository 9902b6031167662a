/*
pipecache records the pipeline objects an application builds and replays
them on the next start.
*/
package main

import (
	"os"

	"github.com/spaghettifunk/pipecache/cli"
	"github.com/spaghettifunk/pipecache/engine/core"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		core.LogError("%s", err)
		os.Exit(1)
	}
}
