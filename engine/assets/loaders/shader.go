package loaders

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// ShaderLoader reads textual shader sources.
type ShaderLoader struct{}

func (sl *ShaderLoader) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("shader source '%s' is not valid UTF-8", path)
	}
	return data, nil
}
