package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

/** @brief A descriptor set together with the pool it was allocated from. */
type allocatedSet struct {
	handle vk.DescriptorSet
	pool   vk.DescriptorPool
}

func (d *Device) CreateDescriptorSetLayout(info *metadata.DescriptorSetLayoutCreateInfo) (metadata.Handle, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(info.Bindings))
	for i, b := range info.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.DescriptorType),
			DescriptorCount: b.DescriptorCount,
			StageFlags:      vk.ShaderStageFlags(b.StageFlags),
		}
		bindings[i].Deref()
	}

	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	layoutCreateInfo.Deref()

	var pLayout vk.DescriptorSetLayout
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		result := vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutCreateInfo, d.Allocator, &pLayout)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateDescriptorSetLayout", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.descriptorSetLayouts, pLayout), nil
}

func (d *Device) CreateDescriptorPool(info *metadata.DescriptorPoolCreateInfo) (metadata.Handle, error) {
	sizes := make([]vk.DescriptorPoolSize, len(info.PoolSizes))
	for i, s := range info.PoolSizes {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.DescriptorCount,
		}
		sizes[i].Deref()
	}

	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	poolCreateInfo.Deref()

	var pPool vk.DescriptorPool
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		result := vk.CreateDescriptorPool(d.LogicalDevice, &poolCreateInfo, d.Allocator, &pPool)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkCreateDescriptorPool", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.descriptorPools, pPool), nil
}

func (d *Device) AllocateDescriptorSet(pool, layout metadata.Handle) (metadata.Handle, error) {
	pPool, err := lookup(d, d.descriptorPools, "descriptor pool", pool)
	if err != nil {
		return metadata.NullHandle, err
	}
	pLayout, err := lookup(d, d.descriptorSetLayouts, "descriptor set layout", layout)
	if err != nil {
		return metadata.NullHandle, err
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pLayout},
	}
	allocateInfo.Deref()

	var pSet vk.DescriptorSet
	if err := d.locks.SafeCall(DescriptorManagement, func() error {
		result := vk.AllocateDescriptorSets(d.LogicalDevice, &allocateInfo, &pSet)
		if !VulkanResultIsSuccess(result) {
			return resultError("vkAllocateDescriptorSets", result)
		}
		return nil
	}); err != nil {
		return metadata.NullHandle, err
	}
	return store(d, d.descriptorSets, allocatedSet{handle: pSet, pool: pPool}), nil
}

// forgetSets drops every set allocated from pool; they die with it.
func (d *Device) forgetSets(pool vk.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for h, set := range d.descriptorSets {
		if set.pool == pool {
			delete(d.descriptorSets, h)
		}
	}
}

func (d *Device) UpdateDescriptorSets(writes []metadata.WriteDescriptorSet) error {
	if len(writes) == 0 {
		return nil
	}

	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		set, err := lookup(d, d.descriptorSets, "descriptor set", w.DstSet)
		if err != nil {
			return err
		}
		vkWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.handle,
			DstBinding:      w.DstBinding,
			DstArrayElement: w.DstArrayElement,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.DescriptorType),
		}

		switch {
		case w.BufferInfo != nil:
			buffer, err := lookup(d, d.buffers, "buffer", w.BufferInfo.Buffer)
			if err != nil {
				return err
			}
			bufferInfo := vk.DescriptorBufferInfo{
				Buffer: buffer,
				Offset: vk.DeviceSize(w.BufferInfo.Offset),
				Range:  vk.DeviceSize(w.BufferInfo.Range),
			}
			bufferInfo.Deref()
			vkWrites[i].PBufferInfo = []vk.DescriptorBufferInfo{bufferInfo}
		case w.ImageInfo != nil:
			imageInfo, err := d.imageInfo(w.ImageInfo)
			if err != nil {
				return err
			}
			vkWrites[i].PImageInfo = []vk.DescriptorImageInfo{imageInfo}
		default:
			return fmt.Errorf("descriptor write to binding %d carries no buffer or image info", w.DstBinding)
		}
		vkWrites[i].Deref()
	}

	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}

func (d *Device) imageInfo(info *metadata.DescriptorImageInfo) (vk.DescriptorImageInfo, error) {
	// Input attachments carry no sampler; nil handles stay VK_NULL_HANDLE.
	out := vk.DescriptorImageInfo{
		ImageLayout: vk.ImageLayout(info.ImageLayout),
	}
	if info.ImageView != metadata.NullHandle {
		view, err := lookup(d, d.imageViews, "image view", info.ImageView)
		if err != nil {
			return out, err
		}
		out.ImageView = view
	}
	if info.Sampler != metadata.NullHandle {
		sampler, err := lookup(d, d.samplers, "sampler", info.Sampler)
		if err != nil {
			return out, err
		}
		out.Sampler = sampler
	}
	out.Deref()
	return out, nil
}
