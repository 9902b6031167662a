package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/cache"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// ShaderLibrary indexes the .shadercfg files under a directory and loads
// the sources they reference on demand. Loaded sources are cached until
// the file changes on disk. Changed content hashes to new fingerprints,
// so the resource cache never needs to be told.
type ShaderLibrary struct {
	dir string

	mutex   sync.RWMutex
	configs map[string]*ShaderConfig          // by shader name
	names   map[string]string                 // config path to shader name
	sources map[string]*metadata.ShaderSource // by source path

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	changes  chan string
}

func NewShaderLibrary(dir string) (*ShaderLibrary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("shader directory '%s' is not a directory", dir)
	}

	sl := &ShaderLibrary{
		dir:     dir,
		configs: make(map[string]*ShaderConfig),
		names:   make(map[string]string),
		sources: make(map[string]*metadata.ShaderSource),
		changes: make(chan string, 16),
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ShaderConfigExtension {
			sl.indexConfig(path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	core.LogInfo("Shader library indexed %d shaders under '%s'.", len(sl.configs), dir)
	return sl, nil
}

// indexConfig parses a config file and replaces whatever it declared before.
// Broken files are logged and left out of the index.
func (sl *ShaderLibrary) indexConfig(path string) {
	data, err := os.ReadFile(path)
	var cfg *ShaderConfig
	if err == nil {
		cfg, err = ParseShaderConfig(data)
	}

	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	if old, ok := sl.names[path]; ok {
		delete(sl.configs, old)
		delete(sl.names, path)
	}
	if err != nil {
		core.LogError("Failed to load shader config '%s': %s", path, err)
		return
	}
	if other, ok := sl.configs[cfg.Name]; ok {
		core.LogWarn("Shader '%s' in '%s' is already declared by '%s', ignoring.", cfg.Name, path, other.path)
		return
	}
	cfg.path = path
	sl.configs[cfg.Name] = cfg
	sl.names[path] = cfg.Name
}

func (sl *ShaderLibrary) removeConfig(path string) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	if name, ok := sl.names[path]; ok {
		delete(sl.configs, name)
		delete(sl.names, path)
	}
}

func (sl *ShaderLibrary) Names() []string {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()

	names := make([]string, 0, len(sl.configs))
	for name := range sl.configs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (sl *ShaderLibrary) Shader(name string) (*ShaderConfig, error) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()

	cfg, ok := sl.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrShaderNotFound, name)
	}
	return cfg, nil
}

func (sl *ShaderLibrary) sourcePath(cfg *ShaderConfig, stage *ShaderStageConfig) string {
	if filepath.IsAbs(stage.File) {
		return stage.File
	}
	return filepath.Join(filepath.Dir(cfg.path), stage.File)
}

// Source returns the source of one stage of a shader, loading it on first use.
func (sl *ShaderLibrary) Source(name string, stage metadata.ShaderStage) (*metadata.ShaderSource, *ShaderStageConfig, error) {
	cfg, err := sl.Shader(name)
	if err != nil {
		return nil, nil, err
	}
	stageCfg, ok := cfg.Stage(stage)
	if !ok {
		return nil, nil, fmt.Errorf("%w: shader '%s' has no %s stage", core.ErrUnknownShaderStage, name, stage)
	}

	path := sl.sourcePath(cfg, stageCfg)

	sl.mutex.RLock()
	source, ok := sl.sources[path]
	sl.mutex.RUnlock()
	if ok {
		return source, stageCfg, nil
	}

	loader, ok := loaderFor(path)
	if !ok {
		return nil, nil, fmt.Errorf("no loader registered for shader source '%s'", path)
	}
	data, err := loader.Load(path)
	if err != nil {
		return nil, nil, err
	}
	source = metadata.NewShaderSource(stageCfg.File, data, stageCfg.Resources...)

	sl.mutex.Lock()
	sl.sources[path] = source
	sl.mutex.Unlock()
	return source, stageCfg, nil
}

// RequestModules requests one shader module per stage of the named shader,
// in declaration order.
func (sl *ShaderLibrary) RequestModules(rc *cache.ResourceCache, name string) ([]*cache.ShaderModule, error) {
	cfg, err := sl.Shader(name)
	if err != nil {
		return nil, err
	}

	modules := make([]*cache.ShaderModule, 0, len(cfg.Stages))
	for _, stage := range cfg.Stages {
		source, stageCfg, err := sl.Source(name, stage.Stage)
		if err != nil {
			return nil, err
		}
		module, err := rc.RequestShaderModule(stage.Stage, source, stageCfg.EntryPoint, stageCfg.Variant())
		if err != nil {
			return nil, fmt.Errorf("shader '%s': %w", name, err)
		}
		modules = append(modules, module)
	}
	return modules, nil
}

// Changes reports the names of shaders whose files changed while watching.
// Notifications are dropped when nobody keeps up with the channel.
func (sl *ShaderLibrary) Changes() <-chan string {
	return sl.changes
}

func (sl *ShaderLibrary) notify(name string) {
	select {
	case sl.changes <- name:
	default:
	}
}

// Watch starts reloading configs and dropping cached sources when files
// under the library directory change.
func (sl *ShaderLibrary) Watch() error {
	if sl.fsnotify != nil {
		return errors.New("shader library is already watching")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	sl.fsnotify = fsWatch
	sl.done = make(chan struct{})

	if err := sl.watchRecursive(sl.dir); err != nil {
		fsWatch.Close()
		sl.fsnotify = nil
		return err
	}

	sl.wg.Add(1)
	go sl.start()
	return nil
}

func (sl *ShaderLibrary) Close() error {
	if sl.fsnotify == nil {
		return nil
	}
	close(sl.done)
	sl.wg.Wait()
	sl.fsnotify = nil
	return nil
}

func (sl *ShaderLibrary) start() {
	defer sl.wg.Done()
	for {
		select {
		case e, ok := <-sl.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := sl.watchRecursive(e.Name); err != nil {
						core.LogError("%s", err)
					}
				}
				continue
			}
			sl.handleFileEvent(e)

		case err, ok := <-sl.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-sl.done:
			sl.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (sl *ShaderLibrary) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return sl.fsnotify.Add(walkPath)
		}
		if filepath.Ext(walkPath) == ShaderConfigExtension {
			sl.indexConfig(walkPath)
		}
		return nil
	})
}

// Handle the creation, modification or removal of a file
func (sl *ShaderLibrary) handleFileEvent(e fsnotify.Event) {
	if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if filepath.Ext(e.Name) == ShaderConfigExtension {
		sl.mutex.RLock()
		old := sl.names[e.Name]
		sl.mutex.RUnlock()

		if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			sl.removeConfig(e.Name)
		} else {
			sl.indexConfig(e.Name)
		}
		if old != "" {
			sl.notify(old)
		}
		sl.mutex.RLock()
		name, ok := sl.names[e.Name]
		sl.mutex.RUnlock()
		if ok && name != old {
			sl.notify(name)
		}
		return
	}

	for _, name := range sl.invalidateSource(e.Name) {
		core.LogDebug("Shader source '%s' changed, reloading '%s' on next request.", e.Name, name)
		sl.notify(name)
	}
}

// invalidateSource drops a cached source and returns the shaders using it.
func (sl *ShaderLibrary) invalidateSource(path string) []string {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	delete(sl.sources, path)

	var affected []string
	for name, cfg := range sl.configs {
		for i := range cfg.Stages {
			if sl.sourcePath(cfg, &cfg.Stages[i]) == path {
				affected = append(affected, name)
				break
			}
		}
	}
	slices.Sort(affected)
	return affected
}
