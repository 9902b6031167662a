package systems

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/moby/sys/atomicwriter"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

/** @brief The configuration for the warmup system */
type WarmupSystemConfig struct {
	/** @brief Location of the cache file. */
	Path string
	/** @brief Cache files written for another application id are discarded. */
	ApplicationID uuid.UUID
	/** @brief Compresses the payload with zstd. */
	Compress bool
	/** @brief Location of the driver pipeline cache data. Defaults to pipeline_cache.data next to Path. */
	PipelineCachePath string
}

// WarmupSystem persists the resource record of a cache between runs and
// replays it at startup.
type WarmupSystem struct {
	config WarmupSystemConfig
	cache  *cache.ResourceCache

	// nil when the device has no driver pipeline cache
	pipelineDevice cache.PipelineCacheDevice
	pipelineCache  metadata.Handle

	// serializes writers of the cache file
	mu sync.Mutex
}

var defaultApplicationID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("github.com/spaghettifunk/pipecache"))

// ParseApplicationID parses the configured id. An empty string selects a
// fixed default id.
func ParseApplicationID(s string) (uuid.UUID, error) {
	if s == "" {
		return defaultApplicationID, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid application id '%s': %w", s, err)
	}
	return id, nil
}

func NewWarmupSystem(config WarmupSystemConfig, rc *cache.ResourceCache) (*WarmupSystem, error) {
	if rc == nil {
		return nil, fmt.Errorf("warmup system: %w", core.ErrNilDependency)
	}
	if config.Path == "" {
		err := fmt.Errorf("failed to run NewWarmupSystem because config.Path is empty")
		core.LogError("%s", err)
		return nil, err
	}
	if config.ApplicationID == uuid.Nil {
		config.ApplicationID = defaultApplicationID
	}
	if config.PipelineCachePath == "" {
		config.PipelineCachePath = filepath.Join(filepath.Dir(config.Path), "pipeline_cache.data")
	}

	ws := &WarmupSystem{config: config, cache: rc}
	if pd, ok := rc.Device().(cache.PipelineCacheDevice); ok {
		ws.pipelineDevice = pd
	}

	core.LogInfo("Warmup system initialized with cache file '%s'.", config.Path)
	return ws, nil
}

func (ws *WarmupSystem) Path() string {
	return ws.config.Path
}

func (ws *WarmupSystem) PipelineCachePath() string {
	return ws.config.PipelineCachePath
}

// loadPipelineCache creates the driver pipeline cache from the persisted
// data and hands it to the resource cache. Data the driver rejects is
// dropped and an empty cache is created instead.
func (ws *WarmupSystem) loadPipelineCache() error {
	if ws.pipelineDevice == nil {
		return nil
	}
	ws.destroyPipelineCache()

	path := ws.config.PipelineCachePath
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	handle, err := ws.pipelineDevice.CreatePipelineCache(data)
	if err != nil && len(data) > 0 {
		core.LogWarn("Discarding pipeline cache '%s': %s", path, err)
		handle, err = ws.pipelineDevice.CreatePipelineCache(nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create pipeline cache: %w", err)
	}

	ws.pipelineCache = handle
	ws.cache.SetPipelineCache(handle)
	core.LogDebug("Created pipeline cache from '%s' (%d bytes).", path, len(data))
	return nil
}

// savePipelineCache writes the driver pipeline cache data. The caller
// holds mu.
func (ws *WarmupSystem) savePipelineCache() error {
	if ws.pipelineDevice == nil || ws.pipelineCache == metadata.NullHandle {
		return nil
	}
	data, err := ws.pipelineDevice.GetPipelineCacheData(ws.pipelineCache)
	if err != nil {
		return err
	}
	if err := writeFile(ws.config.PipelineCachePath, data); err != nil {
		return fmt.Errorf("failed to write pipeline cache '%s': %w", ws.config.PipelineCachePath, err)
	}
	core.LogDebug("Saved pipeline cache '%s' (%d bytes).", ws.config.PipelineCachePath, len(data))
	return nil
}

func (ws *WarmupSystem) destroyPipelineCache() {
	if ws.pipelineCache == metadata.NullHandle {
		return
	}
	ws.cache.SetPipelineCache(metadata.NullHandle)
	ws.pipelineDevice.DestroyPipelineCache(ws.pipelineCache)
	ws.pipelineCache = metadata.NullHandle
}

// Close destroys the driver pipeline cache. Save it first to keep it.
func (ws *WarmupSystem) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.destroyPipelineCache()
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomicwriter.WriteFile(path, data, 0o644)
}

// Load replays the cache file into the cache. A missing, foreign or
// corrupt file is skipped with a warning and so is a failing replay: the
// cache then builds the remaining objects lazily. Only unexpected I/O
// errors are returned. The result reports whether the whole file replayed.
//
// When the device keeps a driver pipeline cache it is created first, so
// replayed pipelines compile through it.
func (ws *WarmupSystem) Load() (bool, error) {
	ws.mu.Lock()
	err := ws.loadPipelineCache()
	ws.mu.Unlock()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(ws.config.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogInfo("No warmup cache at '%s', objects are built on first use.", ws.config.Path)
			return false, nil
		}
		return false, err
	}

	payload, err := DecodeCacheFile(ws.config.ApplicationID, data)
	if err != nil {
		core.LogWarn("Discarding warmup cache '%s': %s", ws.config.Path, err)
		return false, nil
	}

	if err := ws.cache.Warmup(payload); err != nil {
		core.LogWarn("Warmup from '%s' stopped early: %s", ws.config.Path, err)
		return false, nil
	}
	return true, nil
}

// Save writes the current resource record and the driver pipeline cache.
// The record is not written when the cache does not record.
func (ws *WarmupSystem) Save() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := ws.savePipelineCache(); err != nil {
		return err
	}

	if ws.cache.Recorder() == nil {
		core.LogWarn("Resource recording is disabled, not saving '%s'.", ws.config.Path)
		return nil
	}

	data, err := EncodeCacheFile(ws.config.ApplicationID, ws.cache.Serialize(), ws.config.Compress)
	if err != nil {
		return err
	}
	if err := writeFile(ws.config.Path, data); err != nil {
		return fmt.Errorf("failed to write warmup cache '%s': %w", ws.config.Path, err)
	}
	core.LogDebug("Saved warmup cache '%s' (%d bytes).", ws.config.Path, len(data))
	return nil
}

// SaveAsync queues a Save on the job system.
func (ws *WarmupSystem) SaveAsync(js *JobSystem, onDone func(error)) error {
	return js.Submit(JobTask{
		Name: "save warmup cache",
		Run:  ws.Save,
		OnComplete: func() {
			if onDone != nil {
				onDone(nil)
			}
		},
		OnFailure: onDone,
	})
}

// Remove deletes the cache file and the pipeline cache data so the next
// start builds everything lazily.
func (ws *WarmupSystem) Remove() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, path := range []string{ws.config.Path, ws.config.PipelineCachePath} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
