// Package datafile reads compiled SLUDGE game data files (.slg).
//
// A data file holds a header, one string table per language, an index of
// compiled user functions, an index of object types and an index of embedded
// resources. Only one slice of the file may be open at a time; opening a
// second one before the first is closed fails with ErrSliceBusy.
package datafile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/opcode"
	"github.com/zurustar/sludge-vm/pkg/vm"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrSliceBusy is returned when a slice is opened while another one is still open.
	ErrSliceBusy = errors.New("datafile: slice already open")
	// ErrUnknownLanguage is returned by SelectLanguage for an ID the file does not carry.
	ErrUnknownLanguage = errors.New("datafile: unknown language")
)

// File is an open data file. It implements vm.CodeSource.
// A File is not safe for concurrent use.
type File struct {
	rs     io.ReadSeeker
	closer io.Closer
	header *Header

	start    int64
	language int

	textIndex   int64
	subIndex    int64
	subCount    int
	objectIndex int64
	objectCount int
	dataIndex   int64

	busy bool
	log  *slog.Logger
}

// Option configures a File.
type Option func(*File)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(f *File) {
		f.log = log
	}
}

// Open opens and parses the data file at path.
func Open(path string, opts ...Option) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	f, err := Read(fp, opts...)
	if err != nil {
		fp.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.closer = fp
	return f, nil
}

// Read parses a data file from rs, selecting the default language.
func Read(rs io.ReadSeeker, opts ...Option) (*File, error) {
	f := &File{
		rs:  rs,
		log: logger.Channel(logger.ChannelDataInit),
	}
	for _, opt := range opts {
		opt(f)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	h, err := readHeader(rs)
	if err != nil {
		return nil, err
	}
	f.header = h
	if f.start, err = rs.Seek(0, io.SeekCurrent); err != nil {
		return nil, err
	}

	f.log.Debug("data file header",
		"version", h.VersionString(),
		"window", fmt.Sprintf("%dx%d", h.WinWidth, h.WinHeight),
		"fps", h.FPS,
		"languages", h.NumLanguages(),
		"globals", h.NumGlobals,
		"builtinNames", len(h.BuiltinNames),
		"functionNames", len(h.FunctionNames))

	if err := f.setIndices(0); err != nil {
		return nil, err
	}
	return f, nil
}

// Close closes the underlying file when it was opened by Open.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Header returns the parsed header.
func (f *File) Header() *Header {
	return f.header
}

// NumGlobals returns the number of global variable slots the game declares.
func (f *File) NumGlobals() int {
	return f.header.NumGlobals
}

// BuiltinNames returns the built-in name table used to bind built-in ids, or nil.
func (f *File) BuiltinNames() []string {
	return f.header.BuiltinNames
}

// Language returns the index of the selected language.
func (f *File) Language() int {
	return f.language
}

// SelectLanguage switches the string table to the language with the given ID.
// ID 0 always selects the default language.
func (f *File) SelectLanguage(id int) error {
	for i, l := range f.header.Languages {
		if l.ID == id {
			return f.setIndices(i)
		}
	}
	return fmt.Errorf("%w: %d", ErrUnknownLanguage, id)
}

// setIndices locates the index tables, skipping the string tables of every
// language but the one at index skipBefore.
func (f *File) setIndices(skipBefore int) error {
	if f.busy {
		return ErrSliceBusy
	}
	if err := f.seek(f.start, io.SeekStart); err != nil {
		return err
	}

	numLanguages := f.header.NumLanguages()
	if skipBefore < 0 || skipBefore > numLanguages {
		f.log.Warn("not a valid language, using default instead", "language", skipBefore)
		skipBefore = 0
	}
	skipAfter := numLanguages - skipBefore
	d := &decoder{r: f.rs}

	for ; skipBefore > 0; skipBefore-- {
		if err := f.seekTo(d, io.SeekStart); err != nil {
			return err
		}
	}
	f.language = numLanguages - skipAfter

	pos, err := f.tell()
	if err != nil {
		return err
	}
	f.textIndex = pos + 4
	if err := f.seekTo(d, io.SeekStart); err != nil {
		return err
	}
	for ; skipAfter > 0; skipAfter-- {
		if err := f.seekTo(d, io.SeekStart); err != nil {
			return err
		}
	}

	if f.subIndex, f.subCount, err = f.indexTable(d); err != nil {
		return err
	}
	if f.objectIndex, f.objectCount, err = f.indexTable(d); err != nil {
		return err
	}
	if f.dataIndex, err = f.tell(); err != nil {
		return err
	}
	f.busy = false
	return nil
}

// indexTable reads a length-prefixed table of u32 entries and steps past it.
func (f *File) indexTable(d *decoder) (int64, int, error) {
	pos, err := f.tell()
	if err != nil {
		return 0, 0, err
	}
	size := d.u32()
	if d.err != nil {
		return 0, 0, fmt.Errorf("reading index table: %w", d.err)
	}
	if err := f.seek(int64(size), io.SeekCurrent); err != nil {
		return 0, 0, err
	}
	return pos + 4, int(size / 4), nil
}

// seekTo reads a u32 offset and seeks to it relative to whence.
func (f *File) seekTo(d *decoder, whence int) error {
	off := d.u32()
	if d.err != nil {
		return fmt.Errorf("reading offset: %w", d.err)
	}
	return f.seek(int64(off), whence)
}

func (f *File) seek(off int64, whence int) error {
	if _, err := f.rs.Seek(off, whence); err != nil {
		return fmt.Errorf("seeking data file: %w", err)
	}
	return nil
}

func (f *File) tell() (int64, error) {
	return f.rs.Seek(0, io.SeekCurrent)
}

// Slice is an open region of the data file. Closing it frees the file for the next reader.
type Slice struct {
	f      *File
	r      io.Reader
	closed bool
}

func (s *Slice) Read(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	return s.r.Read(p)
}

// Close releases the file. It is safe to call more than once.
func (s *Slice) Close() error {
	if !s.closed {
		s.closed = true
		s.f.busy = false
	}
	return nil
}

func (f *File) openIndexed(table int64, count, num int, what string) (*Slice, error) {
	if f.busy {
		return nil, ErrSliceBusy
	}
	if num < 0 || num >= count {
		return nil, fmt.Errorf("%s %d out of range (%d in file)", what, num, count)
	}
	if err := f.seek(table+int64(num)*4, io.SeekStart); err != nil {
		return nil, err
	}
	d := &decoder{r: f.rs}
	if err := f.seekTo(d, io.SeekStart); err != nil {
		return nil, err
	}
	f.busy = true
	return &Slice{f: f, r: f.rs}, nil
}

// OpenFunction opens the compiled body of user function num.
func (f *File) OpenFunction(num int) (*Slice, error) {
	return f.openIndexed(f.subIndex, f.subCount, num, "function")
}

// OpenObject opens the definition of object type num.
func (f *File) OpenObject(num int) (*Slice, error) {
	return f.openIndexed(f.objectIndex, f.objectCount, num, "object type")
}

// OpenResource opens embedded resource num and returns it with its length.
func (f *File) OpenResource(num int) (*Slice, int64, error) {
	if f.busy {
		return nil, 0, ErrSliceBusy
	}
	if num < 0 {
		return nil, 0, fmt.Errorf("resource %d out of range", num)
	}
	if err := f.seek(f.dataIndex+int64(num)*4, io.SeekStart); err != nil {
		return nil, 0, err
	}
	d := &decoder{r: f.rs}
	if err := f.seekTo(d, io.SeekCurrent); err != nil {
		return nil, 0, err
	}
	size := int64(d.u32())
	if d.err != nil {
		return nil, 0, fmt.Errorf("reading resource %d: %w", num, d.err)
	}
	f.busy = true
	return &Slice{f: f, r: io.LimitReader(f.rs, size)}, size, nil
}

// LoadFunction reads the compiled body of user function num.
func (f *File) LoadFunction(num int) (*vm.FunctionCode, error) {
	s, err := f.OpenFunction(num)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	d := &decoder{r: s}
	code := &vm.FunctionCode{Unfreezable: d.u8() != 0}
	numLines := d.u16()
	code.NumArgs = d.u16()
	code.NumLocals = d.u16()
	code.Lines = make([]opcode.Instruction, 0, numLines)
	for i := 0; i < numLines && d.err == nil; i++ {
		cmd := opcode.Cmd(d.u8())
		code.Lines = append(code.Lines, opcode.Instruction{Cmd: cmd, Param: int32(d.u16())})
	}
	if d.err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.FunctionName(num), d.err)
	}

	f.log.Debug("loaded function code",
		"function", f.FunctionName(num),
		"lines", numLines,
		"args", code.NumArgs,
		"locals", code.NumLocals,
		"unfreezable", code.Unfreezable)
	return code, nil
}

// String returns numbered string index from the selected language's table.
func (f *File) String(index int) (string, error) {
	if f.busy {
		return "", ErrSliceBusy
	}
	if index < 0 {
		return "", fmt.Errorf("string %d out of range", index)
	}
	if err := f.seek(f.textIndex+int64(index)*4, io.SeekStart); err != nil {
		return "", err
	}
	d := &decoder{r: f.rs}
	if err := f.seekTo(d, io.SeekStart); err != nil {
		return "", err
	}
	s := d.str()
	if d.err != nil {
		return "", fmt.Errorf("reading string %d: %w", index, d.err)
	}
	if f.header.Version < versionUTF8 {
		return charmap.Windows1252.NewDecoder().String(s)
	}
	return s, nil
}

// ResourceName returns the name of embedded resource num for display.
func (f *File) ResourceName(num int32) string {
	names := f.header.ResourceNames
	switch {
	case len(names) == 0:
		return "RESOURCE"
	case num >= 0 && int(num) < len(names):
		return names[num]
	default:
		return "Unknown resource"
	}
}

// FunctionName returns the script name of user function num.
func (f *File) FunctionName(num int) string {
	if num >= 0 && num < len(f.header.FunctionNames) {
		return f.header.FunctionNames[num]
	}
	return fmt.Sprintf("function %d", num)
}

// BuiltinName returns the script name of built-in id.
func (f *File) BuiltinName(id int) string {
	if id >= 0 && id < len(f.header.BuiltinNames) {
		return f.header.BuiltinNames[id]
	}
	return fmt.Sprintf("built-in %d", id)
}

var (
	_ vm.CodeSource    = (*File)(nil)
	_ vm.FunctionNamer = (*File)(nil)
)
