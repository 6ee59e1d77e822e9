// Package customdata stores script collections in files, for the
// saveCustomData and loadCustomData built-ins.
//
// Files are CBOR encoded in canonical mode. Only numbers and text can be
// saved; the elements come back as a Stack in their original order.
package customdata

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// formatVersion is written into every file and checked on load.
const formatVersion = 1

// ErrUnsupportedElement is returned when a collection holds something other than numbers and text.
var ErrUnsupportedElement = errors.New("customdata: can only save numbers and text")

// ErrFormat is returned for files that are not custom data files.
var ErrFormat = errors.New("customdata: not a custom data file")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("customdata: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// element is one saved value; exactly one of Int and Str is meaningful, chosen by Text.
type element struct {
	Text bool   `cbor:"1,keyasint,omitempty"`
	Int  int32  `cbor:"2,keyasint,omitempty"`
	Str  string `cbor:"3,keyasint,omitempty"`
}

type document struct {
	Version  int       `cbor:"1,keyasint"`
	Elements []element `cbor:"2,keyasint"`
}

// Marshal encodes the elements of a Stack or FastArray.
func Marshal(h *vm.Heap, coll vm.Value) ([]byte, error) {
	doc := document{Version: formatVersion, Elements: []element{}}
	err := h.Each(coll, func(i int, e vm.Value) error {
		switch e.Type {
		case vm.TypeInt:
			doc.Elements = append(doc.Elements, element{Int: e.Int})
		case vm.TypeString:
			doc.Elements = append(doc.Elements, element{Text: true, Str: e.Str})
		default:
			return fmt.Errorf("%w: element %d is a %s", ErrUnsupportedElement, i, e.Type)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(&doc)
}

// Unmarshal decodes a file into a new Stack owned by the caller.
func Unmarshal(h *vm.Heap, data []byte) (vm.Value, error) {
	var doc document
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return vm.Null, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if doc.Version != formatVersion {
		return vm.Null, fmt.Errorf("%w: version %d", ErrFormat, doc.Version)
	}
	vals := make([]vm.Value, len(doc.Elements))
	for i, e := range doc.Elements {
		if e.Text {
			vals[i] = vm.String(e.Str)
		} else {
			vals[i] = vm.Int(e.Int)
		}
	}
	return h.StackFrom(vals)
}

// Save writes the elements of coll to w.
func Save(w io.Writer, h *vm.Heap, coll vm.Value) error {
	data, err := Marshal(h, coll)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Load reads a Stack from r.
func Load(r io.Reader, h *vm.Heap) (vm.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return vm.Null, err
	}
	return Unmarshal(h, data)
}

// SaveFile writes coll to path, replacing any existing file.
// Nothing is written when coll cannot be encoded.
func SaveFile(path string, h *vm.Heap, coll vm.Value) error {
	data, err := Marshal(h, coll)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write custom data: %w", err)
	}
	return nil
}

// LoadFile reads a Stack from path.
func LoadFile(path string, h *vm.Heap) (vm.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vm.Null, fmt.Errorf("failed to read custom data: %w", err)
	}
	return Unmarshal(h, data)
}
