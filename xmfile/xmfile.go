// Package xmfile decodes FastTracker 2 extended module (XM) files.
//
// The result is a raw Module that mirrors the file layout.
// It's not suitable for the playback as is; see xmseq.LoadModule.
package xmfile

import (
	"fmt"
	"io"
)

// Module is a parsed XM file contents.
type Module struct {
	Name        string
	TrackerName string

	// Version is a {major, minor} pair; it's {1, 4} for all
	// modern XM files.
	Version [2]byte

	SongLength      int
	RestartPosition int

	NumChannels    int
	NumPatterns    int
	NumInstruments int

	// Flags bit 0 selects the frequency table:
	// 0 is Amiga, 1 is linear.
	Flags uint16

	DefaultTempo int
	DefaultBPM   int

	// PatternOrder holds SongLength pattern indexes.
	// Some of them can be out of the Patterns range.
	PatternOrder []uint8

	Patterns []Pattern

	Instruments []Instrument

	// Notes is a table of unique pattern notes.
	// Pattern rows refer to these notes by their IDs.
	// A note with ID=0 is always an empty note.
	Notes []PatternNote
}

// LinearFrequencies reports whether the module uses a linear frequency table.
func (m *Module) LinearFrequencies() bool {
	return m.Flags&0b1 != 0
}

type Pattern struct {
	// IsEmpty is set for patterns stored without any packed data.
	IsEmpty bool

	Rows []PatternRow
}

type PatternRow struct {
	// Notes are Module.Notes indexes, one per channel.
	Notes []uint16
}

// PatternNote is a single pattern cell.
type PatternNote struct {
	ID uint16

	Note            uint8
	Instrument      uint8
	Volume          uint8
	EffectType      uint8
	EffectParameter uint8
}

type Instrument struct {
	Name string

	// KeymapAssignments maps every note (0-95) to a sample index.
	// It's nil for instruments without samples.
	KeymapAssignments []byte

	EnvelopeVolume  []EnvelopePoint
	EnvelopePanning []EnvelopePoint

	VolumeSustainPoint    uint8
	VolumeLoopStartPoint  uint8
	VolumeLoopEndPoint    uint8
	PanningSustainPoint   uint8
	PanningLoopStartPoint uint8
	PanningLoopEndPoint   uint8

	VolumeFlags  EnvelopeFlags
	PanningFlags EnvelopeFlags

	VibratoType  uint8
	VibratoSweep uint8
	VibratoDepth uint8
	VibratoRate  uint8

	VolumeFadeout int

	Samples []InstrumentSample
}

// EnvelopePoint is a raw envelope point.
// X is a tick offset, Y is a value in [0, 64].
type EnvelopePoint struct {
	X uint16
	Y uint16
}

type InstrumentSample struct {
	Name string

	// Length, LoopStart and LoopLength are measured in bytes.
	Length     int
	LoopStart  int
	LoopLength int

	Volume int

	// Finetune is a signed value in 1/128 semitone units.
	Finetune int

	TypeFlags uint8
	Panning   uint8

	// RelativeNote is a signed semitone offset.
	RelativeNote int

	Format SampleFormat

	// Data is a raw (encoded) sample data.
	// For SampleFormatDeltaPacked it holds delta values.
	//
	// It can be shorter than Length if the parser
	// was configured to accept truncated files.
	Data []uint8
}

type SampleLoopType int

const (
	SampleLoopNone SampleLoopType = iota
	SampleLoopForward
	SampleLoopPingPong
	SampleLoopUnknown
)

func (t SampleLoopType) String() string {
	switch t {
	case SampleLoopNone:
		return "none"
	case SampleLoopForward:
		return "forward"
	case SampleLoopPingPong:
		return "ping-pong"
	default:
		return "unknown"
	}
}

func (s *InstrumentSample) LoopType() SampleLoopType {
	return SampleLoopType(s.TypeFlags & 0b11)
}

func (s *InstrumentSample) Is16bits() bool {
	return s.TypeFlags&(1<<4) != 0
}

type EnvelopeFlags int

func (f EnvelopeFlags) IsOn() bool           { return f&(1<<0) != 0 }
func (f EnvelopeFlags) SustainEnabled() bool { return f&(1<<1) != 0 }
func (f EnvelopeFlags) LoopEnabled() bool    { return f&(1<<2) != 0 }

type SampleFormat int

const (
	SampleFormatDeltaPacked SampleFormat = iota

	// SampleFormatADPCM is a ModPlug 4-bit ADPCM extension.
	SampleFormatADPCM
)

func (f SampleFormat) String() string {
	if f == SampleFormatADPCM {
		return "adpcm"
	}
	return "delta"
}

type ParserConfig struct {
	// NeedStrings makes the parser keep the instrument and sample names.
	// The module name and tracker name are always decoded.
	NeedStrings bool

	// AllowTruncatedSamples makes the parser accept the files
	// that end in the middle of the sample data.
	AllowTruncatedSamples bool

	// OnWarning is called for the recoverable format deviations,
	// like unusual header sizes.
	// The warnings are ignored if it's nil.
	OnWarning func(w *ParseError)
}

// Parser decodes XM files.
//
// A single parser can be re-used to parse several files,
// but every ParseFromBytes call invalidates the previously returned module.
type Parser struct {
	impl *parser
}

func NewParser(config ParserConfig) *Parser {
	return &Parser{impl: newParser(config)}
}

// ParseFromBytes decodes XM file data.
// The returned module refers to the data slice, so
// it should not be modified while the module is in use.
//
// A non-nil error is usually a *ParseError object.
func (p *Parser) ParseFromBytes(data []byte) (*Module, error) {
	if err := p.impl.Parse(data); err != nil {
		return nil, err
	}
	return &p.impl.module, nil
}

// Parse reads XM file data and decodes it into a module.
// Unlike the Parser, it keeps all names.
//
// A non-nil error is usually a *ParseError object.
func Parse(r io.Reader) (*Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	p := NewParser(ParserConfig{NeedStrings: true})
	return p.ParseFromBytes(data)
}
