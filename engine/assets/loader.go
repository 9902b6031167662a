package assets

import (
	"path/filepath"

	"github.com/spaghettifunk/pipecache/engine/assets/loaders"
)

type Loader interface {
	Load(path string) ([]byte, error)
}

// Register loaders for each source type
var sourceLoaders = map[string]Loader{
	".spv":  &loaders.BinaryLoader{},
	".vert": &loaders.ShaderLoader{},
	".frag": &loaders.ShaderLoader{},
	".geom": &loaders.ShaderLoader{},
	".tesc": &loaders.ShaderLoader{},
	".tese": &loaders.ShaderLoader{},
	".comp": &loaders.ShaderLoader{},
	".glsl": &loaders.ShaderLoader{},
	".hlsl": &loaders.ShaderLoader{},
}

func loaderFor(path string) (Loader, bool) {
	l, ok := sourceLoaders[filepath.Ext(path)]
	return l, ok
}
