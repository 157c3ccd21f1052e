package xmseq

import (
	"encoding/binary"
	"fmt"

	"github.com/quasilyte/xmseq/xmfile"
)

type moduleCompiler struct {
	result Module

	// emptyPattern is a Patterns index of the generated empty pattern, if any.
	emptyPattern int
}

// LoadModule converts a parsed XM module into a playable Module.
//
// Pattern order entries that refer to missing patterns are played
// as empty 64-row patterns, the way FastTracker does it.
func LoadModule(m *xmfile.Module) (*Module, error) {
	c := &moduleCompiler{emptyPattern: -1}
	if err := c.compile(m); err != nil {
		return nil, err
	}
	return &c.result, nil
}

func (c *moduleCompiler) compile(m *xmfile.Module) error {
	c.result = Module{
		Name:              m.Name,
		TrackerName:       m.TrackerName,
		NumChannels:       m.NumChannels,
		RestartPosition:   m.RestartPosition,
		DefaultTempo:      m.DefaultTempo,
		DefaultBPM:        m.DefaultBPM,
		LinearFrequencies: m.LinearFrequencies(),
	}

	if m.NumChannels <= 0 {
		return fmt.Errorf("invalid number of channels: %d", m.NumChannels)
	}

	if err := c.compileInstruments(m); err != nil {
		return err
	}

	if err := c.compilePatterns(m); err != nil {
		return err
	}

	return nil
}

func (c *moduleCompiler) compileInstruments(m *xmfile.Module) error {
	c.result.Instruments = make([]Instrument, len(m.Instruments))
	for i := range m.Instruments {
		rawInst := &m.Instruments[i]
		inst := &c.result.Instruments[i]
		inst.Name = rawInst.Name
		inst.VibratoType = rawInst.VibratoType
		inst.VibratoSweep = rawInst.VibratoSweep
		inst.VibratoDepth = rawInst.VibratoDepth
		inst.VibratoRate = rawInst.VibratoRate
		inst.VolumeFadeout = rawInst.VolumeFadeout

		if len(rawInst.Samples) == 0 {
			continue
		}

		if rawInst.VolumeFlags.IsOn() {
			inst.VolumeEnvelope = compileEnvelope(rawInst.EnvelopeVolume, rawInst.VolumeFlags,
				rawInst.VolumeSustainPoint, rawInst.VolumeLoopStartPoint, rawInst.VolumeLoopEndPoint)
		}
		if rawInst.PanningFlags.IsOn() {
			inst.PanningEnvelope = compileEnvelope(rawInst.EnvelopePanning, rawInst.PanningFlags,
				rawInst.PanningSustainPoint, rawInst.PanningLoopStartPoint, rawInst.PanningLoopEndPoint)
		}

		if len(rawInst.Samples) > 1 && len(rawInst.KeymapAssignments) != 0 {
			inst.SampleMap = make([]uint8, len(rawInst.KeymapAssignments))
			copy(inst.SampleMap, rawInst.KeymapAssignments)
		}

		inst.Samples = make([]Sample, len(rawInst.Samples))
		for j := range rawInst.Samples {
			if err := compileSample(&inst.Samples[j], &rawInst.Samples[j]); err != nil {
				return fmt.Errorf("instrument[%d].sample[%d]: %w", i, j, err)
			}
		}
	}

	return nil
}

func compileEnvelope(points []xmfile.EnvelopePoint, flags xmfile.EnvelopeFlags, sustain, loopStart, loopEnd uint8) *Envelope {
	if len(points) == 0 {
		return nil
	}

	e := &Envelope{
		Points: make([]EnvelopePoint, len(points)),
	}
	tick := 0
	for i, p := range points {
		// Ticks are not allowed to go backwards.
		if int(p.X) > tick {
			tick = int(p.X)
		}
		e.Points[i] = EnvelopePoint{
			Tick:  tick,
			Value: clamp(int(p.Y), 0, 64),
		}
	}

	if flags.SustainEnabled() && int(sustain) < len(points) {
		e.HasSustain = true
		e.SustainPoint = int(sustain)
	}
	if flags.LoopEnabled() && int(loopEnd) < len(points) && loopStart <= loopEnd {
		e.HasLoop = true
		e.LoopStartPoint = int(loopStart)
		e.LoopEndPoint = int(loopEnd)
	}

	return e
}

func compileSample(dst *Sample, sample *xmfile.InstrumentSample) error {
	dst.Name = sample.Name
	dst.Volume = clamp(sample.Volume, 0, 0x40)
	dst.Panning = int(sample.Panning)
	dst.RelativeNote = sample.RelativeNote
	dst.Finetune = sample.Finetune
	dst.BytesPerSample = 1
	if sample.Is16bits() {
		dst.BytesPerSample = 2
	}

	switch sample.LoopType() {
	case xmfile.SampleLoopForward:
		dst.LoopType = LoopForward
	case xmfile.SampleLoopPingPong:
		dst.LoopType = LoopPingPong
	case xmfile.SampleLoopNone:
		dst.LoopType = LoopNone
	default:
		return fmt.Errorf("unknown sample loop type %d", sample.LoopType())
	}

	if sample.Format == xmfile.SampleFormatADPCM {
		// ModPlug ADPCM samples are not decoded, they play as silence.
		dst.LoopType = LoopNone
		return nil
	}

	// Sample.Data stores deltas while dst will store the absolute values.
	if dst.BytesPerSample == 2 {
		dst.Data = make([]int16, len(sample.Data)/2)
		v := int16(0)
		for i := range dst.Data {
			v += int16(binary.LittleEndian.Uint16(sample.Data[i*2:]))
			dst.Data[i] = v
		}
	} else {
		dst.Data = make([]int16, len(sample.Data))
		v := int8(0)
		for i, delta := range sample.Data {
			v += int8(delta)
			dst.Data[i] = int16(v)
		}
	}

	// Clip the loop to the sample bounds.
	numBytes := len(dst.Data) * dst.BytesPerSample
	loopStart := clamp(sample.LoopStart, 0, numBytes)
	loopEnd := clamp(sample.LoopStart+sample.LoopLength, loopStart, numBytes)
	dst.LoopStart = loopStart
	dst.LoopLength = loopEnd - loopStart
	if dst.LoopLength == 0 {
		dst.LoopType = LoopNone
	}

	return nil
}

func (c *moduleCompiler) compilePatterns(m *xmfile.Module) error {
	c.result.Patterns = make([]Pattern, len(m.Patterns))
	for i := range m.Patterns {
		rawPat := &m.Patterns[i]
		pat := &c.result.Patterns[i]
		pat.NumChannels = m.NumChannels
		pat.Rows = make([]Row, len(rawPat.Rows))
		notes := make([]Note, len(rawPat.Rows)*m.NumChannels)
		for j, rawRow := range rawPat.Rows {
			if len(rawRow.Notes) != m.NumChannels {
				return fmt.Errorf("pattern[%d].row[%d]: found %d notes, expected %d",
					i, j, len(rawRow.Notes), m.NumChannels)
			}
			row := notes[j*m.NumChannels : (j+1)*m.NumChannels]
			for k, noteID := range rawRow.Notes {
				if int(noteID) >= len(m.Notes) {
					return fmt.Errorf("pattern[%d].row[%d]: invalid note ID %d", i, j, noteID)
				}
				rawNote := m.Notes[noteID]
				row[k] = Note{
					Note:        rawNote.Note,
					Instrument:  rawNote.Instrument,
					Volume:      rawNote.Volume,
					EffectType:  rawNote.EffectType,
					EffectParam: rawNote.EffectParameter,
				}
			}
			pat.Rows[j] = row
		}
	}

	c.result.PatternOrder = make([]int, len(m.PatternOrder))
	for i, patternIndex := range m.PatternOrder {
		index := int(patternIndex)
		if index >= len(m.Patterns) {
			index = c.emptyPatternIndex(m.NumChannels)
		}
		c.result.PatternOrder[i] = index
	}

	return nil
}

func (c *moduleCompiler) emptyPatternIndex(numChannels int) int {
	if c.emptyPattern == -1 {
		const numRows = 64
		pat := Pattern{
			NumChannels: numChannels,
			Rows:        make([]Row, numRows),
		}
		notes := make([]Note, numRows*numChannels)
		for i := range pat.Rows {
			pat.Rows[i] = notes[i*numChannels : (i+1)*numChannels]
		}
		c.result.Patterns = append(c.result.Patterns, pat)
		c.emptyPattern = len(c.result.Patterns) - 1
	}
	return c.emptyPattern
}
