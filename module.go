package xmseq

// Module is a decoded XM module ready to be played.
//
// Unlike xmfile.Module, it has resolved notes, decoded samples and
// validated envelopes. A Module is never modified by the player,
// so it can be shared between several players.
type Module struct {
	Name        string
	TrackerName string

	NumChannels int

	// PatternOrder holds Patterns indexes.
	PatternOrder    []int
	RestartPosition int

	DefaultTempo int
	DefaultBPM   int

	// LinearFrequencies is false for modules that use the Amiga frequency table.
	// The player always uses the linear table.
	LinearFrequencies bool

	Patterns    []Pattern
	Instruments []Instrument
}

type Pattern struct {
	NumChannels int
	Rows        []Row
}

// Row is a single pattern row, one note per channel.
type Row []Note

// Note is a single pattern cell.
type Note struct {
	// Note is 0 for "no note", 1-96 for pitched notes and NoteOff for key-off.
	// Values above NoteOff are invalid and ignored.
	Note uint8

	// Instrument is a 1-based instrument number; 0 means "keep the current one".
	Instrument uint8

	Volume uint8

	EffectType  uint8
	EffectParam uint8
}

const (
	// NoteOff is a note number that releases the channel note.
	NoteOff = 97

	// maxNoteNum is the highest note number that can be triggered.
	maxNoteNum = 95
)

func (n Note) IsEmpty() bool { return n == Note{} }

type Instrument struct {
	Name string

	VibratoType  uint8
	VibratoSweep uint8
	VibratoDepth uint8
	VibratoRate  uint8

	VolumeFadeout int

	// Envelopes are nil when they are disabled.
	VolumeEnvelope  *Envelope
	PanningEnvelope *Envelope

	// SampleMap maps a note index to a Samples index.
	// A nil map selects the first sample for every note.
	SampleMap []uint8

	Samples []Sample
}

func (inst *Instrument) hasVibrato() bool {
	return inst.VibratoDepth != 0 && inst.VibratoRate != 0
}

// sampleFor returns a sample that should be used for the note.
// It returns nil if there is no such sample.
func (inst *Instrument) sampleFor(noteNum int) *Sample {
	index := 0
	if inst.SampleMap != nil {
		if noteNum < 1 || noteNum > len(inst.SampleMap) {
			return nil
		}
		index = int(inst.SampleMap[noteNum-1])
	}
	if index >= len(inst.Samples) {
		return nil
	}
	return &inst.Samples[index]
}

type Envelope struct {
	Points []EnvelopePoint

	HasSustain   bool
	SustainPoint int

	HasLoop        bool
	LoopStartPoint int
	LoopEndPoint   int
}

type EnvelopePoint struct {
	// Tick is an offset from the note start.
	Tick int

	// Value is in [0, 64].
	Value int
}

type SampleLoopType int

const (
	LoopNone SampleLoopType = iota
	LoopForward
	LoopPingPong
)

// SampleRate is a sample rate that all XM samples are expected to be played at
// when the playback rate is 1.
const SampleRate = 44100

type Sample struct {
	Name string

	// Data holds the decoded sample values.
	// 8-bit samples keep their [-128, 127] range.
	Data []int16

	// BytesPerSample is 1 for 8-bit samples and 2 for 16-bit samples.
	// Loop bounds and offsets are in bytes, just like in XM files.
	BytesPerSample int

	LoopType   SampleLoopType
	LoopStart  int
	LoopLength int

	// Volume is in [0, 64].
	Volume int

	// Panning is in [0, 255], 128 is a center.
	Panning int

	RelativeNote int
	Finetune     int
}

// Float32 returns the sample data converted into [-1, 1) values.
func (s *Sample) Float32() []float32 {
	divisor := float32(0x80)
	if s.BytesPerSample == 2 {
		divisor = 0x8000
	}
	out := make([]float32, len(s.Data))
	for i, v := range s.Data {
		out[i] = float32(v) / divisor
	}
	return out
}

// Duration returns the sample duration in seconds when it's played at the base rate.
func (s *Sample) Duration() float64 {
	return float64(len(s.Data)) / SampleRate
}

// LoopBounds returns the loop start and end points in seconds.
func (s *Sample) LoopBounds() (start, end float64) {
	bps := float64(s.BytesPerSample)
	start = float64(s.LoopStart) / bps / SampleRate
	end = float64(s.LoopStart+s.LoopLength) / bps / SampleRate
	return start, end
}
