package engine

import (
	"github.com/spaghettifunk/pipecache/engine/core"
)

type ApplicationConfig struct {
	// The application name, used in logs.
	Name string
	// TOML configuration file read at initialization. Ignored when Config is set.
	ConfigPath string
	// Configuration to use as is, if applicable.
	Config *core.Config
}
