package engine

// InheritInfo is a singly-linked chain from a buffer's own IndexInfo up
// toward a depth-0 ancestor (spec.md §3). Expand produces children at
// parent.Depth+1; collapse consumes back down to parent.Depth.
type InheritInfo struct {
	depth       int
	inheritFrom *IndexInfo
}

// NewRootInheritInfo builds the depth-0 inherit info of a freshly
// opened stream (no parent).
func NewRootInheritInfo() *InheritInfo {
	return &InheritInfo{depth: 0}
}

// NewChildInheritInfo builds the inherit info for a buffer produced one
// expand-depth below parent.
func NewChildInheritInfo(parent *IndexInfo) *InheritInfo {
	return &InheritInfo{depth: parent.InheritInfo().Depth() + 1, inheritFrom: parent}
}

// Depth returns this chain link's depth, always >= 0.
func (i *InheritInfo) Depth() int { return i.depth }

// InheritFrom returns the predecessor IndexInfo, or nil at depth 0.
func (i *InheritInfo) InheritFrom() *IndexInfo { return i.inheritFrom }

// RootAncestor walks InheritFrom until Depth() == 0 and returns that
// IndexInfo. If this chain is already at depth 0, own is returned.
func (i *InheritInfo) RootAncestor(own *IndexInfo) *IndexInfo {
	cur := own
	for cur.InheritInfo().Depth() != 0 {
		cur = cur.InheritInfo().InheritFrom()
	}
	return cur
}

// IndexInfo is the lineage tag carried by every Buffer (spec.md §3).
type IndexInfo struct {
	stream        *Stream
	isEndFlag     bool
	isPlaceholder bool
	inherit       *InheritInfo
}

// NewIndexInfo builds an IndexInfo for stream at the given lineage
// position.
func NewIndexInfo(stream *Stream, inherit *InheritInfo, endFlag, placeholder bool) *IndexInfo {
	return &IndexInfo{stream: stream, inherit: inherit, isEndFlag: endFlag, isPlaceholder: placeholder}
}

func (idx *IndexInfo) Stream() *Stream          { return idx.stream }
func (idx *IndexInfo) IsEndFlag() bool          { return idx.isEndFlag }
func (idx *IndexInfo) IsPlaceholder() bool      { return idx.isPlaceholder }
func (idx *IndexInfo) InheritInfo() *InheritInfo { return idx.inherit }

// RootAncestor returns the depth-0 ancestor IndexInfo of this buffer's
// lineage chain.
func (idx *IndexInfo) RootAncestor() *IndexInfo {
	return idx.inherit.RootAncestor(idx)
}

// Buffer is an opaque payload plus lineage metadata (spec.md §3).
// Every buffer inside the engine carries exactly one IndexInfo; a
// buffer with an error still flows downstream, the error is only
// surfaced via SessionIO.SetLastError at the virtual-output boundary.
type Buffer struct {
	Data     []byte
	Meta     map[string]string
	err      error
	index    *IndexInfo
}

// NewBuffer builds a Buffer carrying index as its lineage tag.
func NewBuffer(data []byte, index *IndexInfo) *Buffer {
	return &Buffer{Data: data, index: index, Meta: map[string]string{}}
}

// Index returns this buffer's IndexInfo.
func (b *Buffer) Index() *IndexInfo { return b.index }

// HasError reports whether an error has been attached to this buffer.
func (b *Buffer) HasError() bool { return b.err != nil }

// Error returns the attached error, or nil.
func (b *Buffer) Error() error { return b.err }

// SetError attaches an error to this buffer; the buffer still flows
// downstream (spec.md §3 invariant).
func (b *Buffer) SetError(err error) { b.err = err }

// GetMeta returns the value of a metadata key.
func (b *Buffer) GetMeta(key string) (string, bool) {
	v, ok := b.Meta[key]
	return v, ok
}

// SetMeta sets a metadata key.
func (b *Buffer) SetMeta(key, value string) {
	if b.Meta == nil {
		b.Meta = map[string]string{}
	}
	b.Meta[key] = value
}
