package cache

import (
	"fmt"

	"github.com/spaghettifunk/pipecache/engine/core"
	"github.com/spaghettifunk/pipecache/engine/renderer/metadata"
)

// Reference points at an earlier record entry of a kind.
type Reference struct {
	Kind  metadata.ResourceKind
	Index int
}

// Entry describes one record entry without constructing anything.
type Entry struct {
	Kind       metadata.ResourceKind
	Index      int
	Offset     int
	Size       int
	Supported  bool
	References []Reference
	Summary    string
}

// ReadEntries decodes a record stream for inspection. It checks the same
// things a replay does: framing, payloads and that every reference points
// at an earlier entry of the right kind.
func ReadEntries(data []byte) ([]Entry, error) {
	var (
		entries []Entry
		counts  [metadata.ResourceKindCount]int
	)

	stream := newStreamReader(data)
	for {
		f, ok := stream.nextFrame()
		if !ok {
			break
		}
		e := Entry{Kind: f.kind, Offset: f.offset, Size: len(f.payload), Index: -1}
		if f.kind.Valid() {
			e.Index = counts[f.kind]
		}

		r := newStreamReader(f.payload)
		e.Supported = true
		switch f.kind {
		case metadata.ResourceKindShaderModule:
			sm := decodeShaderModule(r)
			e.Summary = fmt.Sprintf("%s %s:%s (%d bytes, %d resources)", sm.stage, sm.source.Filename, sm.entryPoint, len(sm.source.Data), len(sm.source.Resources))
		case metadata.ResourceKindPipelineLayout:
			for _, index := range decodePipelineLayout(r) {
				e.References = append(e.References, Reference{Kind: metadata.ResourceKindShaderModule, Index: index})
			}
			e.Summary = fmt.Sprintf("%d shader modules", len(e.References))
		case metadata.ResourceKindRenderPass:
			rp := decodeRenderPass(r)
			e.Summary = fmt.Sprintf("%d attachments, %d subpasses", len(rp.attachments), len(rp.subpasses))
		case metadata.ResourceKindGraphicsPipeline:
			gp := decodeGraphicsPipeline(r)
			e.References = []Reference{
				{Kind: metadata.ResourceKindPipelineLayout, Index: gp.layoutIndex},
				{Kind: metadata.ResourceKindRenderPass, Index: gp.renderPassIndex},
			}
			e.Summary = fmt.Sprintf("subpass %d, %d specialization constants", gp.state.Subpass, len(gp.state.SpecializationConstants))
		case metadata.ResourceKindComputePipeline:
			cp := decodeComputePipeline(r)
			e.References = []Reference{{Kind: metadata.ResourceKindPipelineLayout, Index: cp.layoutIndex}}
			e.Summary = fmt.Sprintf("%d specialization constants", len(cp.state.SpecializationConstants))
		default:
			e.Supported = false
			e.Summary = "not supported"
		}
		if r.err != nil {
			return entries, fmt.Errorf("entry %d (%s) at offset %d: %w", len(entries), f.kind, f.offset, r.err)
		}
		for _, ref := range e.References {
			if ref.Index < 0 || ref.Index >= counts[ref.Kind] {
				return entries, fmt.Errorf("entry %d (%s) at offset %d: %w: %s %d, only %d recorded",
					len(entries), f.kind, f.offset, core.ErrDependencyIndex, ref.Kind, ref.Index, counts[ref.Kind])
			}
		}
		if f.kind.Valid() {
			counts[f.kind]++
		}
		entries = append(entries, e)
	}
	return entries, stream.err
}
