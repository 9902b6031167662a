package systems

import (
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
)

type SystemManager struct {
	jobSystem    *JobSystem
	warmupSystem *WarmupSystem
}

// NewSystemManager starts the job system and, when enabled, the warmup system.
func NewSystemManager(config *core.Config, rc *cache.ResourceCache) (*SystemManager, error) {
	js, err := NewJobSystem(1, 4)
	if err != nil {
		return nil, err
	}

	sm := &SystemManager{jobSystem: js}
	if !config.Warmup.Enabled {
		return sm, nil
	}

	id, err := ParseApplicationID(config.Warmup.ApplicationID)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	ws, err := NewWarmupSystem(WarmupSystemConfig{
		Path:              config.Warmup.Path,
		ApplicationID:     id,
		Compress:          config.Warmup.Compress,
		PipelineCachePath: config.Warmup.PipelineCachePath,
	}, rc)
	if err != nil {
		js.Shutdown()
		return nil, err
	}
	sm.warmupSystem = ws
	return sm, nil
}

func (sm *SystemManager) JobSystem() *JobSystem {
	return sm.jobSystem
}

// WarmupSystem is nil when warmup is disabled.
func (sm *SystemManager) WarmupSystem() *WarmupSystem {
	return sm.warmupSystem
}

func (sm *SystemManager) Shutdown() error {
	return sm.jobSystem.Shutdown()
}
