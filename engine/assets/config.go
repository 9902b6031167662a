package assets

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

const ShaderConfigExtension = ".shadercfg"

/** @brief One stage of a shader: its source file, entry point, variant defines and reflected resources. */
type ShaderStageConfig struct {
	Stage      metadata.ShaderStage      `toml:"stage"`
	File       string                    `toml:"file"`
	EntryPoint string                    `toml:"entry_point"`
	Defines    []string                  `toml:"defines"`
	Undefines  []string                  `toml:"undefines"`
	Resources  []metadata.ShaderResource `toml:"resources"`
}

/** @brief The contents of a .shadercfg file. */
type ShaderConfig struct {
	Name   string              `toml:"name"`
	Stages []ShaderStageConfig `toml:"stages"`

	// file the config was read from
	path string
}

func ParseShaderConfig(data []byte) (*ShaderConfig, error) {
	cfg := &ShaderConfig{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("shader config has no name")
	}
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("shader '%s' has no stages", cfg.Name)
	}
	seen := make(map[metadata.ShaderStage]bool, len(cfg.Stages))
	for i := range cfg.Stages {
		stage := &cfg.Stages[i]
		if stage.Stage == 0 {
			return nil, fmt.Errorf("shader '%s' stage %d has no stage type", cfg.Name, i)
		}
		if seen[stage.Stage] {
			return nil, fmt.Errorf("shader '%s' declares the %s stage twice", cfg.Name, stage.Stage)
		}
		seen[stage.Stage] = true
		if stage.File == "" {
			return nil, fmt.Errorf("shader '%s' %s stage has no file", cfg.Name, stage.Stage)
		}
		if stage.EntryPoint == "" {
			stage.EntryPoint = "main"
		}
	}
	return cfg, nil
}

func (sc *ShaderConfig) Stage(stage metadata.ShaderStage) (*ShaderStageConfig, bool) {
	for i := range sc.Stages {
		if sc.Stages[i].Stage == stage {
			return &sc.Stages[i], true
		}
	}
	return nil, false
}

// Variant builds the shader variant the stage's defines describe.
func (sc *ShaderStageConfig) Variant() *metadata.ShaderVariant {
	v := metadata.NewShaderVariant("", nil)
	for _, def := range sc.Defines {
		v.AddDefine(def)
	}
	for _, undef := range sc.Undefines {
		v.AddUndefine(undef)
	}
	return v
}
