package testbed

import (
	"fmt"

	"github.com/spaghettifunk/pipecache/engine"
	"github.com/spaghettifunk/pipecache/engine/core"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	sceneConfig SceneConfig
	scene       *Scene
}

// NewTestGame builds the forward scene on every run. With a warmup cache
// from a previous run every request is a cache hit.
func NewTestGame(configPath string, config *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:       "Pipecache Testbed",
				ConfigPath: configPath,
				Config:     config,
			},
			State: &gameState{
				sceneConfig: DefaultSceneConfig(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnPrepare = tg.Prepare
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogDebug("TestGame Initialize fn....")

	if e.ShaderLibrary() == nil {
		return fmt.Errorf("the testbed needs a shader directory, none is configured")
	}
	for _, name := range []string{ForwardShader, ParticlesShader} {
		if _, err := e.ShaderLibrary().Shader(name); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) Prepare(e *engine.Engine) error {
	scene, err := BuildScene(e.ResourceCache(), e.ShaderLibrary(), g.state().sceneConfig)
	if err != nil {
		core.LogError("failed to build the testbed scene")
		return err
	}
	g.state().scene = scene
	return nil
}

func (g *TestGame) Shutdown(e *engine.Engine) error {
	core.LogDebug("TestGame Shutdown fn....")
	g.state().scene = nil
	return nil
}

// Scene is nil until the engine ran.
func (g *TestGame) Scene() *Scene {
	return g.state().scene
}
