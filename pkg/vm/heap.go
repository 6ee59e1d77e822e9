package vm

import "fmt"

// Handle addresses a collection in the Heap.
// The generation makes a handle to a freed and reused slot detectably stale.
type Handle struct {
	index uint32
	gen   uint32
}

// String formats the handle for logs.
func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.index, h.gen)
}

// Node is one entry of a linked value list.
type Node struct {
	Value Value
	Next  *Node
}

type slot struct {
	gen   uint32
	refs  int
	kind  Type // TypeStack, TypeFastArray, or TypeNull when free
	first *Node
	last  *Node
	items []Value
}

// Heap is the arena holding every Stack and FastArray of a machine.
// A slot is freed exactly when its reference count drops to zero.
type Heap struct {
	slots []slot
	free  []uint32
	live  int
	names ResourceNamer
}

// NewHeap creates an empty heap. names may be nil.
func NewHeap(names ResourceNamer) *Heap {
	return &Heap{names: names}
}

// Live returns the number of allocated collections.
func (h *Heap) Live() int {
	return h.live
}

// Refs returns the reference count of the collection v refers to, or 0.
func (h *Heap) Refs(v Value) int {
	if !v.Type.Shared() {
		return 0
	}
	s, err := h.slot(v.Ref)
	if err != nil {
		return 0
	}
	return s.refs
}

func (h *Heap) alloc(kind Type) (Handle, *slot) {
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		h.slots = append(h.slots, slot{})
		idx = uint32(len(h.slots) - 1)
	}
	s := &h.slots[idx]
	s.gen++
	s.refs = 1
	s.kind = kind
	h.live++
	return Handle{index: idx, gen: s.gen}, s
}

func (h *Heap) slot(ref Handle) (*slot, error) {
	if int(ref.index) >= len(h.slots) {
		return nil, Errorf(ErrorStaleHandle, "collection %s does not exist", ref)
	}
	s := &h.slots[ref.index]
	if s.gen != ref.gen || s.kind == TypeNull {
		return nil, Errorf(ErrorStaleHandle, "collection %s has been freed", ref)
	}
	return s, nil
}

func (h *Heap) typedSlot(v Value, kind Type) (*slot, error) {
	if v.Type != kind {
		return nil, NewTypeMismatchError(kind, v.Type)
	}
	return h.slot(v.Ref)
}

// Copy makes dst a copy of src, releasing what dst held before.
// The source is retained first so copying a value onto itself is safe.
func (h *Heap) Copy(dst *Value, src Value) error {
	if src.Type.Shared() {
		s, err := h.slot(src.Ref)
		if err != nil {
			return err
		}
		s.refs++
	}
	h.Release(dst)
	*dst = src
	return nil
}

// Release drops the reference v holds and sets it to Null.
// Releasing a Null value does nothing, so a second release is harmless.
func (h *Heap) Release(v *Value) {
	old := *v
	*v = Null
	if !old.Type.Shared() {
		return
	}
	s, err := h.slot(old.Ref)
	if err != nil || s.refs <= 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		h.freeSlot(old.Ref.index)
	}
}

func (h *Heap) freeSlot(idx uint32) {
	s := &h.slots[idx]
	first, items := s.first, s.items
	s.first, s.last, s.items = nil, nil, nil
	s.kind = TypeNull
	h.live--
	h.free = append(h.free, idx)

	for first != nil {
		h.Release(&first.Value)
		first = first.Next
	}
	for i := range items {
		h.Release(&items[i])
	}
}

// NewStack allocates an empty Stack. The returned value owns the only reference.
func (h *Heap) NewStack() Value {
	ref, _ := h.alloc(TypeStack)
	return Value{Type: TypeStack, Ref: ref}
}

// MaxFastArraySize is the largest FastArray a script may create.
const MaxFastArraySize = 1 << 20

// NewFastArray allocates a FastArray of size Null elements.
func (h *Heap) NewFastArray(size int) (Value, error) {
	if size < 0 || size > MaxFastArraySize {
		return Null, Errorf(ErrorIndexOutOfRange, "cannot create a fast array of size %d", size)
	}
	ref, s := h.alloc(TypeFastArray)
	s.items = make([]Value, size)
	return Value{Type: TypeFastArray, Ref: ref}, nil
}

// StackFrom builds a Stack holding copies of vals, vals[0] first.
func (h *Heap) StackFrom(vals []Value) (Value, error) {
	st := h.NewStack()
	for _, v := range vals {
		if err := h.Enqueue(st, v); err != nil {
			h.Release(&st)
			return Null, err
		}
	}
	return st, nil
}

// FastArrayFrom builds a FastArray holding copies of vals.
func (h *Heap) FastArrayFrom(vals []Value) (Value, error) {
	fa, err := h.NewFastArray(len(vals))
	if err != nil {
		return Null, err
	}
	s, _ := h.slot(fa.Ref)
	for i, v := range vals {
		if err := h.Copy(&s.items[i], v); err != nil {
			h.Release(&fa)
			return Null, err
		}
	}
	return fa, nil
}

// Each calls fn for every element of a Stack or FastArray, in order.
// The element is borrowed: fn must Copy it to keep it.
func (h *Heap) Each(coll Value, fn func(i int, e Value) error) error {
	switch coll.Type {
	case TypeStack:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return err
		}
		i := 0
		for n := s.first; n != nil; n = n.Next {
			if err := fn(i, n.Value); err != nil {
				return err
			}
			i++
		}
		return nil
	case TypeFastArray:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return err
		}
		for i, e := range s.items {
			if err := fn(i, e); err != nil {
				return err
			}
		}
		return nil
	default:
		return Errorf(ErrorIndexNonStack, "cannot iterate a %s", coll.Type)
	}
}

// Len returns the element count of a Stack (by walking it) or FastArray.
func (h *Heap) Len(coll Value) (int, error) {
	switch coll.Type {
	case TypeStack:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return 0, err
		}
		return StackSize(s.first), nil
	case TypeFastArray:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return 0, err
		}
		return len(s.items), nil
	default:
		return 0, Errorf(ErrorIndexNonStack, "cannot take the size of a %s", coll.Type)
	}
}
