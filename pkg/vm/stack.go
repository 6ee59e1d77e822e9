package vm

// Push prepends a copy of v to the list at *top.
func (h *Heap) Push(v Value, top **Node) error {
	n := &Node{}
	if err := h.Copy(&n.Value, v); err != nil {
		return err
	}
	n.Next = *top
	*top = n
	return nil
}

// PushQuick prepends *v to the list at *top, moving it: *v is left Null
// and no reference counts change.
func PushQuick(v *Value, top **Node) {
	*top = &Node{Value: *v, Next: *top}
	*v = Null
}

// Trim releases and unlinks the head of the list. The list must not be empty.
func (h *Heap) Trim(top **Node) {
	n := *top
	*top = n.Next
	h.Release(&n.Value)
}

// Drain trims the list until it is empty.
func (h *Heap) Drain(top **Node) {
	for *top != nil {
		h.Trim(top)
	}
}

// StackSize counts the nodes of a list.
func StackSize(n *Node) int {
	size := 0
	for ; n != nil; n = n.Next {
		size++
	}
	return size
}

// StackGetByIndex walks to the idx-th node, counting from 1.
// It returns nil when idx is below 1 or past the end of the list.
func StackGetByIndex(n *Node, idx int32) *Value {
	if n == nil || idx < 1 {
		return nil
	}
	for ; idx > 1; idx-- {
		n = n.Next
		if n == nil {
			return nil
		}
	}
	return &n.Value
}

// StackSetByIndex copies v into the idx-th node, counting from 1.
// It returns false without changing anything when the index is out of range.
func (h *Heap) StackSetByIndex(n *Node, idx int32, v Value) (bool, error) {
	dst := StackGetByIndex(n, idx)
	if dst == nil {
		return false, nil
	}
	return true, h.Copy(dst, v)
}

// FastArrayGetByIndex bounds-checks a 0-based index.
func FastArrayGetByIndex(items []Value, idx int32) *Value {
	if idx < 0 || int(idx) >= len(items) {
		return nil
	}
	return &items[idx]
}

// FindLast returns the tail node of a list.
func FindLast(n *Node) *Node {
	if n == nil {
		return nil
	}
	for n.Next != nil {
		n = n.Next
	}
	return n
}

// deleteMatching unlinks nodes equal to v, the first one only unless all is set.
func (h *Heap) deleteMatching(v Value, first **Node, all bool) int {
	removed := 0
	for p := first; *p != nil; {
		if Equals((*p).Value, v) {
			h.Trim(p)
			removed++
			if !all {
				break
			}
			continue
		}
		p = &(*p).Next
	}
	return removed
}

func (h *Heap) stack(coll Value) (*slot, error) {
	return h.typedSlot(coll, TypeStack)
}

// StackPush adds a copy of v to the front of a Stack.
func (h *Heap) StackPush(coll Value, v Value) error {
	s, err := h.stack(coll)
	if err != nil {
		return err
	}
	if err := h.Push(v, &s.first); err != nil {
		return err
	}
	if s.last == nil {
		s.last = s.first
	}
	return nil
}

// Enqueue adds a copy of v to the end of a Stack.
func (h *Heap) Enqueue(coll Value, v Value) error {
	s, err := h.stack(coll)
	if err != nil {
		return err
	}
	if s.first == nil {
		return h.StackPush(coll, v)
	}
	n := &Node{}
	if err := h.Copy(&n.Value, v); err != nil {
		return err
	}
	s.last.Next = n
	s.last = n
	return nil
}

// PopFront removes the first element of a Stack and hands ownership of it to the caller.
func (h *Heap) PopFront(coll Value) (Value, error) {
	s, err := h.stack(coll)
	if err != nil {
		return Null, err
	}
	if s.first == nil {
		return Null, NewRuntimeError(ErrorEmptyCollection, "the stack's empty")
	}
	n := s.first
	s.first = n.Next
	if s.first == nil {
		s.last = nil
	}
	return n.Value, nil
}

// PeekStart returns the first element of a Stack, borrowed.
func (h *Heap) PeekStart(coll Value) (Value, error) {
	s, err := h.stack(coll)
	if err != nil {
		return Null, err
	}
	if s.first == nil {
		return Null, NewRuntimeError(ErrorEmptyCollection, "the stack's empty")
	}
	return s.first.Value, nil
}

// PeekEnd returns the last element of a Stack, borrowed.
func (h *Heap) PeekEnd(coll Value) (Value, error) {
	s, err := h.stack(coll)
	if err != nil {
		return Null, err
	}
	if s.last == nil {
		return Null, NewRuntimeError(ErrorEmptyCollection, "the stack's empty")
	}
	return s.last.Value, nil
}

// DeleteFirst removes the first element equal to v and reports how many were removed.
func (h *Heap) DeleteFirst(coll Value, v Value) (int, error) {
	return h.deleteFrom(coll, v, false)
}

// DeleteAll removes every element equal to v.
func (h *Heap) DeleteAll(coll Value, v Value) (int, error) {
	return h.deleteFrom(coll, v, true)
}

func (h *Heap) deleteFrom(coll Value, v Value, all bool) (int, error) {
	s, err := h.stack(coll)
	if err != nil {
		return 0, err
	}
	n := h.deleteMatching(v, &s.first, all)
	s.last = FindLast(s.first)
	return n, nil
}

// CopyStack returns a new Stack holding copies of the elements of coll.
func (h *Heap) CopyStack(coll Value) (Value, error) {
	s, err := h.stack(coll)
	if err != nil {
		return Null, err
	}
	var vals []Value
	for n := s.first; n != nil; n = n.Next {
		vals = append(vals, n.Value)
	}
	return h.StackFrom(vals)
}

// Element resolves coll[idx] for the indexing instructions.
// Stacks count from 1 and FastArrays from 0.
func (h *Heap) Element(coll Value, idx int32) (*Value, error) {
	switch coll.Type {
	case TypeStack:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return nil, err
		}
		if s.first == nil {
			return nil, NewRuntimeError(ErrorIndexEmpty, "tried to index an empty stack")
		}
		e := StackGetByIndex(s.first, idx)
		if e == nil {
			return nil, NewIndexOutOfRangeError(idx, StackSize(s.first))
		}
		return e, nil
	case TypeFastArray:
		s, err := h.slot(coll.Ref)
		if err != nil {
			return nil, err
		}
		e := FastArrayGetByIndex(s.items, idx)
		if e == nil {
			return nil, NewIndexOutOfRangeError(idx, len(s.items))
		}
		return e, nil
	default:
		return nil, Errorf(ErrorIndexNonStack, "tried to index a non-stack variable (%s)", coll.Type)
	}
}
