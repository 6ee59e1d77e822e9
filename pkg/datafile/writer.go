package datafile

import (
	"fmt"
	"io"

	"github.com/zurustar/sludge-vm/pkg/vm"
	"golang.org/x/text/encoding/charmap"
)

// Writer assembles a data file. It is used to build test fixtures and by tools
// that repack game data.
type Writer struct {
	Header Header

	// Strings holds one numbered string table per language, default language first.
	Strings   [][]string
	Functions []*vm.FunctionCode
	Objects   [][]byte
	Resources [][]byte
}

// NewWriter returns a Writer with a current-version header and one language.
func NewWriter() *Writer {
	return &Writer{
		Header: Header{
			Banner:    "SLUDGE data file",
			Version:   MaxVersion,
			WinWidth:  640,
			WinHeight: 480,
			FPS:       50,
		},
		Strings: [][]string{nil},
	}
}

// WriteTo encodes the data file to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	b, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(b)
	return int64(n), err
}

// Bytes encodes the data file.
func (w *Writer) Bytes() ([]byte, error) {
	h := w.Header
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, h.VersionString())
	}
	if h.FPS <= 0 || h.FPS > 255 {
		return nil, fmt.Errorf("frame rate %d out of range", h.FPS)
	}
	languages := h.Languages
	if len(languages) == 0 {
		languages = []Language{{}}
	}
	if h.Version < versionNamedResources && len(languages) > 1 {
		return nil, fmt.Errorf("version %s cannot carry translations", h.VersionString())
	}
	if len(w.Strings) != len(languages) {
		return nil, fmt.Errorf("%d string tables for %d languages", len(w.Strings), len(languages))
	}
	if h.IconLogo != 0 {
		return nil, fmt.Errorf("embedded icon and logo images are not written")
	}

	e := &encoder{}
	e.b = append(e.b, magic...)
	e.u8('\n')
	e.b = append(e.b, h.Banner...)
	e.u8(0)
	e.u8(byte(h.Version >> 8))
	e.u8(byte(h.Version))

	if h.hasNames() {
		e.u8(1)
		e.strs(h.BuiltinNames)
		e.strs(h.FunctionNames)
		if h.Version >= versionNamedResources {
			e.strs(h.ResourceNames)
		}
	} else {
		e.u8(0)
	}

	e.u16(h.WinWidth)
	e.u16(h.WinHeight)
	e.u8(h.SpecialSettings)
	e.u8(byte(h.FPS))
	e.str("")
	e.u32(uint32(h.FileTime))
	e.u32(uint32(h.FileTime >> 32))

	if h.Version >= versionNamedResources {
		e.str(h.DataFolder)
		e.u8(byte(len(languages) - 1))
	}
	for i, l := range languages {
		if i > 0 {
			e.u16(l.ID)
		}
		if h.Version >= versionLanguageNames && len(languages) > 1 {
			e.str(l.Name)
		}
	}
	if h.Version >= versionSmoothing {
		e.u8(h.Reserved)
		if h.Smoothing.Enabled {
			e.u8(1)
		} else {
			e.u8(0)
		}
		e.float(h.Smoothing.Blur)
		e.float(h.Smoothing.Sharpen)
	}
	e.str(checker)
	e.u8(0)
	e.u16(h.NumGlobals)

	// String tables: a pointer to the end of the table, then one absolute
	// position per string.
	for _, table := range w.Strings {
		next := e.reserve()
		slots := make([]int, len(table))
		for i := range table {
			slots[i] = e.reserve()
		}
		for i, s := range table {
			if h.Version < versionUTF8 {
				enc, err := charmap.Windows1252.NewEncoder().String(s)
				if err != nil {
					return nil, fmt.Errorf("string %d: %w", i, err)
				}
				s = enc
			}
			if len(s) > 0xffff {
				return nil, fmt.Errorf("string %d too long", i)
			}
			e.patch(slots[i], e.pos())
			e.str(s)
		}
		e.patch(next, e.pos())
	}

	subSlots := w.table(e, len(w.Functions))
	objectSlots := w.table(e, len(w.Objects))

	// Resource entries are relative to the end of the entry itself.
	dataSlots := make([]int, len(w.Resources))
	for i := range w.Resources {
		dataSlots[i] = e.reserve()
	}

	for i, fn := range w.Functions {
		e.patch(subSlots[i], e.pos())
		if err := encodeFunction(e, fn); err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
	}
	for i, obj := range w.Objects {
		e.patch(objectSlots[i], e.pos())
		e.b = append(e.b, obj...)
	}
	for i, res := range w.Resources {
		e.patch(dataSlots[i], e.pos()-uint32(dataSlots[i]+4))
		e.u32(uint32(len(res)))
		e.b = append(e.b, res...)
	}
	return e.b, nil
}

// table writes a length-prefixed index of n entries and returns the entry offsets.
func (w *Writer) table(e *encoder, n int) []int {
	e.u32(uint32(n * 4))
	slots := make([]int, n)
	for i := range slots {
		slots[i] = e.reserve()
	}
	return slots
}

func encodeFunction(e *encoder, fn *vm.FunctionCode) error {
	if len(fn.Lines) > 0xffff || fn.NumArgs > 0xffff || fn.NumLocals > 0xffff {
		return fmt.Errorf("function too large")
	}
	if fn.Unfreezable {
		e.u8(1)
	} else {
		e.u8(0)
	}
	e.u16(len(fn.Lines))
	e.u16(fn.NumArgs)
	e.u16(fn.NumLocals)
	for i, in := range fn.Lines {
		if in.Param < 0 || in.Param > 0xffff {
			return fmt.Errorf("line %d: parameter %d does not fit", i, in.Param)
		}
		e.u8(byte(in.Cmd))
		e.u16(int(in.Param))
	}
	return nil
}
