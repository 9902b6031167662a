package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/spaghettifunk/pipecache/engine/assets"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

var ErrEngineStage = errors.New("engine is in the wrong stage")

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	device        cache.Device
	resourceCache *cache.ResourceCache
	shaderLibrary *assets.ShaderLibrary
	systemManager *systems.SystemManager
	clock         *core.Clock
	warm          bool
}

func New(g *Game, device cache.Device) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("engine: game and application config are required")
	}
	if device == nil {
		return nil, core.ErrNilDevice
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		device:       device,
		clock:        core.NewClock(),
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("%w: initialize called twice", ErrEngineStage)
	}
	e.currentStage = EngineStageInitializing
	e.clock.Start()

	cfg := e.gameInstance.ApplicationConfig.Config
	if cfg == nil {
		var err error
		if cfg, err = core.LoadConfig(e.gameInstance.ApplicationConfig.ConfigPath); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Log.Level != "" {
		if err := core.SetLogLevel(cfg.Log.Level); err != nil {
			return err
		}
	}
	e.config = cfg

	rc, err := cache.NewResourceCache(e.device, cache.ResourceCacheConfig{
		DescriptorPoolMaxSets: cfg.Cache.DescriptorPoolMaxSets,
		DisableRecording:      cfg.Cache.DisableRecording,
	})
	if err != nil {
		return err
	}
	e.resourceCache = rc

	sm, err := systems.NewSystemManager(cfg, rc)
	if err != nil {
		return err
	}
	e.systemManager = sm

	if err := e.initializeShaderLibrary(); err != nil {
		return err
	}

	if ws := sm.WarmupSystem(); ws != nil {
		if e.warm, err = ws.Load(); err != nil {
			return err
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized in %.2fms (warm cache: %t).", e.gameInstance.ApplicationConfig.Name, e.clock.ElapsedMS(), e.warm)
	return nil
}

func (e *Engine) initializeShaderLibrary() error {
	dir := e.config.Shaders.Directory
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		core.LogWarn("Shader directory '%s' does not exist, shader library disabled.", dir)
		return nil
	}

	sl, err := assets.NewShaderLibrary(dir)
	if err != nil {
		return err
	}
	if e.config.Shaders.Watch {
		if err := sl.Watch(); err != nil {
			return err
		}
	}
	e.shaderLibrary = sl
	return nil
}

// Run lets the application request its objects. Objects the warmup
// replayed are cache hits.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run before initialize", ErrEngineStage)
	}
	e.currentStage = EngineStageRunning

	clock := core.NewClock()
	clock.Start()
	if e.gameInstance.FnPrepare != nil {
		if err := e.gameInstance.FnPrepare(e); err != nil {
			return err
		}
	}
	clock.Stop()

	state := e.resourceCache.State()
	core.LogInfo("Prepared %d cached objects in %.2fms.", state.Total(), clock.ElapsedMS())
	for _, label := range e.resourceCache.Metrics().Labels() {
		m := e.resourceCache.Metrics().Snapshot(label)
		core.LogDebug("%s: %d hits, %d misses, %d failures, %.3fms average build", label, m.Hits, m.Misses, m.Failures, m.MSavg)
	}
	return nil
}

// Checkpoint saves the resource record in the background.
func (e *Engine) Checkpoint(onDone func(error)) error {
	ws := e.systemManager.WarmupSystem()
	if ws == nil {
		return nil
	}
	return ws.SaveAsync(e.systemManager.JobSystem(), onDone)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageUninitialized || e.currentStage >= EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown(e))
	}
	if e.systemManager != nil {
		if ws := e.systemManager.WarmupSystem(); ws != nil {
			errs = append(errs, ws.Save())
			ws.Close()
		}
		errs = append(errs, e.systemManager.Shutdown())
	}
	if e.shaderLibrary != nil {
		errs = append(errs, e.shaderLibrary.Close())
	}
	if e.resourceCache != nil {
		e.resourceCache.Clear()
	}

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *core.Config {
	return e.config
}

func (e *Engine) ResourceCache() *cache.ResourceCache {
	return e.resourceCache
}

// ShaderLibrary is nil when no shader directory is configured.
func (e *Engine) ShaderLibrary() *assets.ShaderLibrary {
	return e.shaderLibrary
}

func (e *Engine) SystemManager() *systems.SystemManager {
	return e.systemManager
}

// Warm reports whether the whole warmup cache replayed at initialization.
func (e *Engine) Warm() bool {
	return e.warm
}
