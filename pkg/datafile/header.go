package datafile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrBadHeader is returned when a file is not a SLUDGE data file.
	ErrBadHeader = errors.New("datafile: bad header")
	// ErrUnsupportedVersion is returned for data files outside MinVersion..MaxVersion.
	ErrUnsupportedVersion = errors.New("datafile: unsupported version")
)

const (
	magic   = "SLUDGE"
	checker = "okSoFar"
)

// Version packs a major and minor version the way data files store them.
func Version(major, minor int) int {
	return major<<8 | minor
}

// Supported data file versions.
const (
	MinVersion = 1<<8 | 2
	MaxVersion = 2<<8 | 2
)

// Version thresholds at which the header layout changed.
var (
	versionNamedResources = Version(1, 3)
	versionSmoothing      = Version(1, 6)
	versionLanguageNames  = Version(2, 0)
	versionUTF8           = Version(2, 2)
)

// Header bits marking embedded images.
const (
	HasIcon = 1 << iota
	HasLogo
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Language is one translation carried by the data file. Index 0 is the default language.
type Language struct {
	ID   int
	Name string
}

// Smoothing holds the default anti-alias settings stored by version 1.6 and later.
type Smoothing struct {
	Enabled bool
	Blur    float32
	Sharpen float32
}

// Header is the fixed part of a data file, before the index tables.
type Header struct {
	Banner  string
	Version int

	// Name tables; absent when the game was compiled without debug names.
	BuiltinNames  []string
	FunctionNames []string
	ResourceNames []string

	WinWidth        int
	WinHeight       int
	SpecialSettings byte
	FPS             int
	FileTime        uint64
	DataFolder      string
	Languages       []Language
	Reserved        byte
	Smoothing       Smoothing
	IconLogo        byte
	NumGlobals      int
}

// NumLanguages returns the number of translations besides the default language.
func (h *Header) NumLanguages() int {
	if len(h.Languages) == 0 {
		return 0
	}
	return len(h.Languages) - 1
}

// FrameInterval returns the time between scheduler ticks.
func (h *Header) FrameInterval() time.Duration {
	if h.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(h.FPS)
}

// VersionString formats the version as major.minor.
func (h *Header) VersionString() string {
	return fmt.Sprintf("%d.%d", h.Version>>8, h.Version&0xff)
}

func (h *Header) hasNames() bool {
	return len(h.BuiltinNames) > 0 || len(h.FunctionNames) > 0 || len(h.ResourceNames) > 0
}

// readHeader parses everything up to the first index table.
// rs is left positioned at the start of the index tables.
func readHeader(rs io.ReadSeeker) (*Header, error) {
	d := &decoder{r: rs}
	h := &Header{}

	if string(d.read(len(magic))) != magic {
		if d.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadHeader, d.err)
		}
		return nil, ErrBadHeader
	}

	// The byte after the magic is a separator and is consumed even when it is NUL.
	_ = d.u8()
	h.Banner = d.cstring()

	major, minor := int(d.u8()), int(d.u8())
	h.Version = Version(major, minor)
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, d.err)
	}
	if h.Version < MinVersion || h.Version > MaxVersion {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, major, minor)
	}

	if d.u8() != 0 {
		h.BuiltinNames = d.strs()
		h.FunctionNames = d.strs()
		if h.Version >= versionNamedResources {
			h.ResourceNames = d.strs()
		}
	}

	h.WinWidth = d.u16()
	h.WinHeight = d.u16()
	h.SpecialSettings = d.u8()
	h.FPS = int(d.u8())
	_ = d.str() // registration, unused

	lo, hi := d.u32(), d.u32()
	h.FileTime = uint64(hi)<<32 | uint64(lo)

	numLanguages := 0
	if h.Version >= versionNamedResources {
		h.DataFolder = d.str()
		numLanguages = int(d.u8())
	}
	h.Languages = make([]Language, numLanguages+1)
	for i := range h.Languages {
		if i > 0 {
			h.Languages[i].ID = d.u16()
		}
		if h.Version >= versionLanguageNames && numLanguages > 0 {
			h.Languages[i].Name = d.str()
		}
	}

	if h.Version >= versionSmoothing {
		h.Reserved = d.u8()
		h.Smoothing.Enabled = d.u8() != 0
		h.Smoothing.Blur = d.float()
		h.Smoothing.Sharpen = d.float()
	}

	if got := d.str(); d.err == nil && got != checker {
		return nil, fmt.Errorf("%w: checker %q", ErrBadHeader, got)
	}

	h.IconLogo = d.u8()
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, d.err)
	}
	if h.IconLogo&HasIcon != 0 {
		if err := skipImage(rs); err != nil {
			return nil, fmt.Errorf("%w: icon: %v", ErrBadHeader, err)
		}
	}
	if h.IconLogo&HasLogo != 0 {
		if err := skipImage(rs); err != nil {
			return nil, fmt.Errorf("%w: logo: %v", ErrBadHeader, err)
		}
	}

	h.NumGlobals = d.u16()
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, d.err)
	}
	if h.FPS == 0 {
		return nil, fmt.Errorf("%w: zero frame rate", ErrBadHeader)
	}
	return h, nil
}

// skipImage steps over an embedded PNG, or an RLE image in the older HSI layout.
func skipImage(rs io.ReadSeeker) error {
	start, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(rs, sig); err == nil && bytes.Equal(sig, pngSignature) {
		return skipPNG(rs)
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return err
	}
	return skipHSI(rs)
}

func skipPNG(rs io.ReadSeeker) error {
	var chunk [8]byte
	for {
		if _, err := io.ReadFull(rs, chunk[:]); err != nil {
			return err
		}
		size := int64(binary.BigEndian.Uint32(chunk[:4]))
		// data plus CRC
		if _, err := rs.Seek(size+4, io.SeekCurrent); err != nil {
			return err
		}
		if string(chunk[4:]) == "IEND" {
			return nil
		}
	}
}

func skipHSI(r io.Reader) error {
	d := &decoder{r: r}
	w, h := d.u16(), d.u16()
	for y := 0; y < h && d.err == nil; y++ {
		for x := 0; x < w && d.err == nil; {
			c := d.u16()
			n := 1
			if c&32 != 0 {
				n = int(d.u8()) + 1
			}
			x += n
		}
	}
	return d.err
}
