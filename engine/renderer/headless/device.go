package headless

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

var (
	ErrInjectedFailure = errors.New("injected device failure")
	ErrOutOfPoolMemory = errors.New("descriptor pool out of memory")
	ErrUnknownHandle   = errors.New("unknown handle")
	ErrDoubleDestroy   = errors.New("handle destroyed twice")
)

// Device is an in memory device. It hands out handles from a counter and
// keeps enough bookkeeping to assert what a cache did with it: creation
// counts and order, destroyed handles and descriptor writes. It is used by
// tests and by the command line tools, which validate records without a GPU.
type Device struct {
	mu sync.Mutex

	next      metadata.Handle
	kinds     map[metadata.Handle]metadata.ResourceKind
	created   map[metadata.ResourceKind]int
	order     []metadata.ResourceKind
	destroyed map[metadata.Handle]metadata.ResourceKind
	failures  map[metadata.ResourceKind][]error
	updateErr []error
	writes    []metadata.WriteDescriptorSet
	poolSets  map[metadata.Handle]uint32
	errs      []error

	shaderModules     map[metadata.Handle]metadata.ShaderModuleCreateInfo
	pipelineLayouts   map[metadata.Handle]metadata.PipelineLayoutCreateInfo
	graphicsPipelines map[metadata.Handle]metadata.GraphicsPipelineCreateInfo
	computePipelines  map[metadata.Handle]metadata.ComputePipelineCreateInfo

	// driver pipeline cache contents by handle
	pipelineCaches map[metadata.Handle][]byte

	compileDelay time.Duration
}

func NewDevice() *Device {
	return &Device{
		kinds:             make(map[metadata.Handle]metadata.ResourceKind),
		created:           make(map[metadata.ResourceKind]int),
		destroyed:         make(map[metadata.Handle]metadata.ResourceKind),
		failures:          make(map[metadata.ResourceKind][]error),
		poolSets:          make(map[metadata.Handle]uint32),
		shaderModules:     make(map[metadata.Handle]metadata.ShaderModuleCreateInfo),
		pipelineLayouts:   make(map[metadata.Handle]metadata.PipelineLayoutCreateInfo),
		graphicsPipelines: make(map[metadata.Handle]metadata.GraphicsPipelineCreateInfo),
		computePipelines:  make(map[metadata.Handle]metadata.ComputePipelineCreateInfo),
		pipelineCaches:    make(map[metadata.Handle][]byte),
	}
}

// SetCompileDelay makes every pipeline construction sleep, mimicking the
// cost of a driver compile.
func (d *Device) SetCompileDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.compileDelay = delay
}

// FailNext makes the next construction of kind fail with err, or with
// ErrInjectedFailure when err is nil. Calls queue up.
func (d *Device) FailNext(kind metadata.ResourceKind, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrInjectedFailure
	}
	d.failures[kind] = append(d.failures[kind], err)
}

// FailNextUpdate makes the next UpdateDescriptorSets call fail.
func (d *Device) FailNextUpdate(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = ErrInjectedFailure
	}
	d.updateErr = append(d.updateErr, err)
}

// create allocates a handle. The caller holds the lock.
func (d *Device) create(kind metadata.ResourceKind) (metadata.Handle, error) {
	if pending := d.failures[kind]; len(pending) > 0 {
		d.failures[kind] = pending[1:]
		return metadata.NullHandle, pending[0]
	}
	d.next++
	d.kinds[d.next] = kind
	d.created[kind]++
	d.order = append(d.order, kind)
	return d.next, nil
}

// check verifies that handle is a live object of kind. The caller holds the lock.
func (d *Device) check(kind metadata.ResourceKind, handle metadata.Handle) error {
	k, ok := d.kinds[handle]
	if !ok || k != kind {
		return fmt.Errorf("%w: %s %d", ErrUnknownHandle, kind, handle)
	}
	if _, gone := d.destroyed[handle]; gone {
		return fmt.Errorf("%w: %s %d is destroyed", ErrUnknownHandle, kind, handle)
	}
	return nil
}

func (d *Device) CreateShaderModule(info *metadata.ShaderModuleCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Source == nil || len(info.Source.Data) == 0 {
		return metadata.NullHandle, fmt.Errorf("shader module has no code")
	}
	handle, err := d.create(metadata.ResourceKindShaderModule)
	if err != nil {
		return handle, err
	}
	d.shaderModules[handle] = *info
	return handle, nil
}

func (d *Device) CreateDescriptorSetLayout(info *metadata.DescriptorSetLayoutCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.create(metadata.ResourceKindDescriptorSetLayout)
}

func (d *Device) CreatePipelineLayout(info *metadata.PipelineLayoutCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, set := range info.SetLayouts {
		if err := d.check(metadata.ResourceKindDescriptorSetLayout, set); err != nil {
			return metadata.NullHandle, err
		}
	}
	handle, err := d.create(metadata.ResourceKindPipelineLayout)
	if err != nil {
		return handle, err
	}
	d.pipelineLayouts[handle] = metadata.PipelineLayoutCreateInfo{
		SetLayouts:         slices.Clone(info.SetLayouts),
		PushConstantRanges: slices.Clone(info.PushConstantRanges),
	}
	return handle, nil
}

func (d *Device) CreateDescriptorPool(info *metadata.DescriptorPoolCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle, err := d.create(metadata.ResourceKindDescriptorPool)
	if err != nil {
		return handle, err
	}
	d.poolSets[handle] = info.MaxSets
	return handle, nil
}

func (d *Device) AllocateDescriptorSet(pool, layout metadata.Handle) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(metadata.ResourceKindDescriptorPool, pool); err != nil {
		return metadata.NullHandle, err
	}
	if err := d.check(metadata.ResourceKindDescriptorSetLayout, layout); err != nil {
		return metadata.NullHandle, err
	}
	if d.poolSets[pool] == 0 {
		return metadata.NullHandle, ErrOutOfPoolMemory
	}
	handle, err := d.create(metadata.ResourceKindDescriptorSet)
	if err != nil {
		return handle, err
	}
	d.poolSets[pool]--
	return handle, nil
}

func (d *Device) UpdateDescriptorSets(writes []metadata.WriteDescriptorSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.updateErr) > 0 {
		err := d.updateErr[0]
		d.updateErr = d.updateErr[1:]
		return err
	}
	for _, w := range writes {
		if err := d.check(metadata.ResourceKindDescriptorSet, w.DstSet); err != nil {
			return err
		}
		// Infos are owned by the caller.
		if w.BufferInfo != nil {
			info := *w.BufferInfo
			w.BufferInfo = &info
		}
		if w.ImageInfo != nil {
			info := *w.ImageInfo
			w.ImageInfo = &info
		}
		d.writes = append(d.writes, w)
	}
	return nil
}

func (d *Device) CreateRenderPass(info *metadata.RenderPassCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sp := range info.Subpasses {
		for _, a := range slices.Concat(sp.InputAttachments, sp.OutputAttachments) {
			if int(a) >= len(info.Attachments) {
				return metadata.NullHandle, fmt.Errorf("subpass references attachment %d of %d", a, len(info.Attachments))
			}
		}
	}
	return d.create(metadata.ResourceKindRenderPass)
}

func (d *Device) compile() {
	if d.compileDelay > 0 {
		time.Sleep(d.compileDelay)
	}
}

func (d *Device) CreateGraphicsPipeline(info *metadata.GraphicsPipelineCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(metadata.ResourceKindPipelineLayout, info.Layout); err != nil {
		return metadata.NullHandle, err
	}
	if err := d.check(metadata.ResourceKindRenderPass, info.RenderPass); err != nil {
		return metadata.NullHandle, err
	}
	for _, stage := range info.Stages {
		if err := d.check(metadata.ResourceKindShaderModule, stage.Module); err != nil {
			return metadata.NullHandle, err
		}
	}
	d.compile()
	handle, err := d.create(metadata.ResourceKindGraphicsPipeline)
	if err != nil {
		return handle, err
	}
	d.graphicsPipelines[handle] = *info
	d.compiled(info.PipelineCache, metadata.ResourceKindGraphicsPipeline)
	return handle, nil
}

func (d *Device) CreateComputePipeline(info *metadata.ComputePipelineCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(metadata.ResourceKindPipelineLayout, info.Layout); err != nil {
		return metadata.NullHandle, err
	}
	if err := d.check(metadata.ResourceKindShaderModule, info.Stage.Module); err != nil {
		return metadata.NullHandle, err
	}
	d.compile()
	handle, err := d.create(metadata.ResourceKindComputePipeline)
	if err != nil {
		return handle, err
	}
	d.computePipelines[handle] = *info
	d.compiled(info.PipelineCache, metadata.ResourceKindComputePipeline)
	return handle, nil
}

func (d *Device) CreateFramebuffer(info *metadata.FramebufferCreateInfo) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(metadata.ResourceKindRenderPass, info.RenderPass); err != nil {
		return metadata.NullHandle, err
	}
	return d.create(metadata.ResourceKindFramebuffer)
}

// DestroyHandle marks handle destroyed. Misuse is logged and kept for Errors.
func (d *Device) DestroyHandle(kind metadata.ResourceKind, handle metadata.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if k, ok := d.kinds[handle]; !ok || k != kind {
		err := fmt.Errorf("%w: destroying %s %d", ErrUnknownHandle, kind, handle)
		core.LogError("%s", err)
		d.errs = append(d.errs, err)
		return
	}
	if _, gone := d.destroyed[handle]; gone {
		err := fmt.Errorf("%w: %s %d", ErrDoubleDestroy, kind, handle)
		core.LogError("%s", err)
		d.errs = append(d.errs, err)
		return
	}
	d.destroyed[handle] = kind
}

// CreatePipelineCache creates a pipeline cache holding a copy of initialData.
// Every pipeline compiled through the cache appends its kind as one byte.
func (d *Device) CreatePipelineCache(initialData []byte) (metadata.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.pipelineCaches[d.next] = slices.Clone(initialData)
	return d.next, nil
}

func (d *Device) GetPipelineCacheData(handle metadata.Handle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.pipelineCaches[handle]
	if !ok {
		return nil, fmt.Errorf("%w: pipeline cache %d", ErrUnknownHandle, handle)
	}
	return slices.Clone(data), nil
}

func (d *Device) DestroyPipelineCache(handle metadata.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelineCaches[handle]; !ok {
		err := fmt.Errorf("%w: destroying pipeline cache %d", ErrUnknownHandle, handle)
		core.LogError("%s", err)
		d.errs = append(d.errs, err)
		return
	}
	delete(d.pipelineCaches, handle)
}

// compiled appends kind to the pipeline cache, if handle names a live one.
// The caller holds the lock.
func (d *Device) compiled(handle metadata.Handle, kind metadata.ResourceKind) {
	if data, ok := d.pipelineCaches[handle]; ok {
		d.pipelineCaches[handle] = append(data, byte(kind))
	}
}

// PipelineCaches returns the number of live pipeline caches.
func (d *Device) PipelineCaches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pipelineCaches)
}

// Created returns how many objects of kind were created.
func (d *Device) Created(kind metadata.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// CreationOrder returns the kind of every created object in creation order.
func (d *Device) CreationOrder() []metadata.ResourceKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.order)
}

func (d *Device) Destroyed(handle metadata.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.destroyed[handle]
	return ok
}

// DestroyedCount returns how many objects of kind were destroyed.
func (d *Device) DestroyedCount(kind metadata.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.destroyed {
		if k == kind {
			n++
		}
	}
	return n
}

// Live returns the number of created objects not yet destroyed. Descriptor
// sets are not counted, they die with their pool.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for handle, kind := range d.kinds {
		if kind == metadata.ResourceKindDescriptorSet {
			continue
		}
		if _, gone := d.destroyed[handle]; !gone {
			n++
		}
	}
	return n
}

func (d *Device) Writes() []metadata.WriteDescriptorSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.writes)
}

// Errors returns the misuse detected by DestroyHandle.
func (d *Device) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.errs)
}

func (d *Device) ShaderModuleInfo(handle metadata.Handle) (metadata.ShaderModuleCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.shaderModules[handle]
	return info, ok
}

func (d *Device) PipelineLayoutInfo(handle metadata.Handle) (metadata.PipelineLayoutCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.pipelineLayouts[handle]
	return info, ok
}

func (d *Device) GraphicsPipelineInfo(handle metadata.Handle) (metadata.GraphicsPipelineCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.graphicsPipelines[handle]
	return info, ok
}

func (d *Device) ComputePipelineInfo(handle metadata.Handle) (metadata.ComputePipelineCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.computePipelines[handle]
	return info, ok
}
