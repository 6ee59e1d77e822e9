package vm

import (
	"strconv"
	"strings"
)

// Type is the tag of a Value. The numbers match the ones stored in saved games.
type Type uint8

const (
	TypeNull      Type = 0
	TypeInt       Type = 1
	TypeFunc      Type = 2
	TypeString    Type = 3
	TypeBuiltin   Type = 4
	TypeFile      Type = 5
	TypeStack     Type = 6
	TypeObjType   Type = 7
	TypeFastArray Type = 10
)

var typeNames = map[Type]string{
	TypeNull:      "undefined",
	TypeInt:       "number",
	TypeFunc:      "user function",
	TypeString:    "string",
	TypeBuiltin:   "built-in function",
	TypeFile:      "file",
	TypeStack:     "stack",
	TypeObjType:   "object type",
	TypeFastArray: "fast array",
}

// String returns the name scripts see when a value of this type is printed.
func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "type " + strconv.Itoa(int(t))
}

// Shared reports whether values of this type reference a heap collection.
func (t Type) Shared() bool {
	return t == TypeStack || t == TypeFastArray
}

// Value is a tagged script value.
// Int carries the payload of every integer-like tag, Str the payload of a
// String, and Ref the collection of a Stack or FastArray.
// Values holding a Ref own one reference and must go through Heap.Copy and
// Heap.Release; the other tags can be copied freely.
type Value struct {
	Type Type
	Int  int32
	Str  string
	Ref  Handle
}

// Null is the zero Value.
var Null = Value{}

// Int returns an Integer value.
func Int(n int32) Value {
	return Value{Type: TypeInt, Int: n}
}

// Typed returns a value of an integer-payload tag such as TypeFunc or TypeFile.
func Typed(t Type, n int32) Value {
	return Value{Type: t, Int: n}
}

// String returns a String value.
func String(s string) Value {
	return Value{Type: TypeString, Str: s}
}

// Bool returns Int(1) or Int(0).
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// IsNull reports whether v is Null.
func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

// IntOf extracts the integer payload, failing unless v is exactly of type want.
func IntOf(v Value, want Type) (int32, error) {
	if v.Type != want {
		return 0, NewTypeMismatchError(want, v.Type)
	}
	return v.Int, nil
}

// Equals compares two values the way EQUALS does: tags must match,
// collections compare by identity and strings by content.
func Equals(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNull:
		return true
	case TypeString:
		return a.Str == b.Str
	case TypeStack, TypeFastArray:
		return a.Ref == b.Ref
	default:
		return a.Int == b.Int
	}
}

// ResourceNamer resolves FileRef payloads to names for text conversion.
type ResourceNamer interface {
	ResourceName(num int32) string
}

// Bool is the truthiness of v. A stale collection handle is an error.
func (h *Heap) Bool(v Value) (bool, error) {
	switch v.Type {
	case TypeNull:
		return false, nil
	case TypeInt:
		return v.Int != 0, nil
	case TypeString:
		return v.Str != "", nil
	case TypeStack:
		s, err := h.slot(v.Ref)
		if err != nil {
			return false, err
		}
		return s.first != nil, nil
	case TypeFastArray:
		s, err := h.slot(v.Ref)
		if err != nil {
			return false, err
		}
		return len(s.items) != 0, nil
	default:
		return true, nil
	}
}

// cycleMarker stands in for a collection already being written.
const cycleMarker = "..."

// Text converts any value to the text scripts see. A collection that
// contains itself is written as "..." where it recurs.
func (h *Heap) Text(v Value) (string, error) {
	var b strings.Builder
	if err := h.writeText(&b, v, nil); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (h *Heap) writeText(b *strings.Builder, v Value, open map[Handle]bool) error {
	switch v.Type {
	case TypeString:
		b.WriteString(v.Str)
	case TypeInt:
		b.WriteString(strconv.FormatInt(int64(v.Int), 10))
	case TypeFile:
		b.WriteString(h.resourceName(v.Int))
	case TypeStack, TypeFastArray:
		s, err := h.slot(v.Ref)
		if err != nil {
			return err
		}
		if open[v.Ref] {
			b.WriteString(cycleMarker)
			return nil
		}
		if open == nil {
			open = make(map[Handle]bool)
		}
		open[v.Ref] = true
		defer delete(open, v.Ref)
		if v.Type == TypeFastArray {
			b.WriteString("FAST:")
			for _, e := range s.items {
				b.WriteByte(' ')
				if err := h.writeText(b, e, open); err != nil {
					return err
				}
			}
			return nil
		}
		b.WriteString("ARRAY:")
		for n := s.first; n != nil; n = n.Next {
			b.WriteByte(' ')
			if err := h.writeText(b, n.Value, open); err != nil {
				return err
			}
		}
	default:
		b.WriteString(v.Type.String())
	}
	return nil
}

func (h *Heap) resourceName(num int32) string {
	if num == -1 {
		return ""
	}
	if h.names == nil {
		return "RESOURCE"
	}
	return h.names.ResourceName(num)
}

// Add implements PLUS: integer addition when both operands are Integers,
// otherwise the concatenated text of both, typed as a String.
func (h *Heap) Add(a, b Value) (Value, error) {
	if a.Type == TypeInt && b.Type == TypeInt {
		return Int(a.Int + b.Int), nil
	}
	left, err := h.Text(a)
	if err != nil {
		return Null, err
	}
	right, err := h.Text(b)
	if err != nil {
		return Null, err
	}
	return String(left + right), nil
}
