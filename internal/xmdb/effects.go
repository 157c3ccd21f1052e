package xmdb

// Effect is a decoded pattern command.
//
// Both the volume column and the effect column are decoded into
// this representation; the extended (0xE and 0x21) commands
// get their own ops, so Arg holds only the relevant parameter bits.
type Effect struct {
	Op  EffectOp
	Arg uint8
}

// Nibbles returns the high and low 4-bit halves of Arg.
func (e Effect) Nibbles() (hi, lo uint8) {
	return e.Arg >> 4, e.Arg & 0x0F
}

type EffectOp int

const (
	EffectNone EffectOp = iota

	// Encoding: effect=0x00 (non-zero param)
	// Arg: two semitone offsets (hi, lo)
	EffectArpeggio

	// Encoding: effect=0x01
	// Arg: 16ths of a semitone per tick (0 reuses the previous value)
	EffectPortamentoUp

	// Encoding: effect=0x02
	// Arg: 16ths of a semitone per tick (0 reuses the previous value)
	EffectPortamentoDown

	// Encoding: effect=0x03 [or] volume byte 0xF0-0xFF
	// Arg: 16ths of a semitone per tick (0 reuses the previous value)
	EffectTonePortamento

	// Encoding: effect=0x04
	// Arg: rate (hi) and depth (lo)
	EffectVibrato

	// Encoding: effect=0x05
	// Arg: volume slide, see EffectVolumeSlide
	EffectTonePortamentoVolumeSlide

	// Encoding: effect=0x06
	// Arg: volume slide, see EffectVolumeSlide
	EffectVibratoVolumeSlide

	// Encoding: effect=0x07
	// Arg: rate (hi) and depth (lo)
	EffectTremolo

	// Encoding: effect=0x08 [or] volume byte 0xC0-0xCF
	// Arg: panning in [0, 0xff]
	EffectSetPanning

	// Encoding: effect=0x09
	// Arg: the offset in 0x100 byte units
	EffectSampleOffset

	// Encoding: effect=0x0A
	// Arg: slide up speed (hi) or slide down speed (lo), per tick
	EffectVolumeSlide

	// Encoding: effect=0x0B
	// Arg: song position
	EffectPositionJump

	// Encoding: effect=0x0C [or] volume byte 0x10-0x50
	// Arg: volume level
	EffectSetVolume

	// Encoding: effect=0x0D
	// Arg: the next pattern row as two decimal digits
	EffectPatternBreak

	// Encoding: effect=0x0E, param=0x1X
	// Arg: 16ths of a semitone per row
	EffectFinePortamentoUp

	// Encoding: effect=0x0E, param=0x2X
	// Arg: 16ths of a semitone per row
	EffectFinePortamentoDown

	// Encoding: effect=0x0E, param=0x3X
	// Arg: 0 turns it on, anything else turns it off
	EffectGlissando

	// Encoding: effect=0x0E, param=0x4X
	// Arg: waveform (see WaveformName) + continuous bit (0x4)
	EffectVibratoWaveform

	// Encoding: effect=0x0E, param=0x5X
	// Arg: finetune in 1/8 semitones, biased by 8
	EffectSetFinetune

	// Encoding: effect=0x0E, param=0x6X
	// Arg: 0 marks the loop start, anything else is the loop counter
	EffectPatternLoop

	// Encoding: effect=0x0E, param=0x7X
	// Arg: waveform (see WaveformName) + continuous bit (0x4)
	EffectTremoloWaveform

	// Encoding: effect=0x0E, param=0x9X
	// Arg: the retrigger interval in ticks
	EffectRetrigger

	// Encoding: effect=0x0E, param=0xAX [or] volume byte 0x90-0x9F
	// Arg: 64ths of the full volume per row
	EffectFineVolumeSlideUp

	// Encoding: effect=0x0E, param=0xBX [or] volume byte 0x80-0x8F
	// Arg: 64ths of the full volume per row
	EffectFineVolumeSlideDown

	// Encoding: effect=0x0E, param=0xCX
	// Arg: tick number
	EffectNoteCut

	// Encoding: effect=0x0E, param=0xDX
	// Arg: tick number
	EffectNoteDelay

	// Encoding: effect=0x0E, param=0xEX
	// Arg: number of rows
	EffectPatternDelay

	// Encoding: effect=0x0F, param<0x20
	// Arg: ticks per row
	EffectSetTempo

	// Encoding: effect=0x0F, param>=0x20
	// Arg: beats per minute
	EffectSetBPM

	// Encoding: effect=0x10
	// Arg: global volume level
	EffectSetGlobalVolume

	// Encoding: effect=0x11
	// Arg: see EffectVolumeSlide
	EffectGlobalVolumeSlide

	// Encoding: effect=0x14
	// Arg: tick number
	EffectKeyOff

	// Encoding: effect=0x15
	// Arg: volume envelope position in ticks
	EffectSetEnvelopePos

	// Encoding: effect=0x19
	// Arg: slide right speed (hi) or slide left speed (lo), per tick
	EffectPanningSlide

	// Encoding: effect=0x1B
	// Arg: volume change (hi) and the retrigger interval (lo)
	EffectMultiRetrigger

	// Encoding: effect=0x1D
	// Arg: ticks on (hi) and ticks off (lo)
	EffectTremor

	// Encoding: effect=0x21, param=0x1X
	// Arg: 64ths of 16ths of a semitone per row
	EffectExtraFinePortamentoUp

	// Encoding: effect=0x21, param=0x2X
	// Arg: 64ths of 16ths of a semitone per row
	EffectExtraFinePortamentoDown

	// Encoding: volume byte 0x60-0x6F
	// Arg: 64ths of the full volume per tick
	EffectVolumeSlideDown

	// Encoding: volume byte 0x70-0x7F
	// Arg: 64ths of the full volume per tick
	EffectVolumeSlideUp

	// Encoding: volume byte 0xA0-0xAF
	// Arg: vibrato rate
	EffectVibratoSpeed

	// Encoding: volume byte 0xB0-0xBF
	// Arg: vibrato depth
	EffectVibratoDepth

	// Encoding: volume byte 0xD0-0xDF
	// Arg: 1/255 panning units per tick
	EffectPanningSlideLeft

	// Encoding: volume byte 0xE0-0xEF
	// Arg: 1/255 panning units per tick
	EffectPanningSlideRight
)

// ConvertEffect decodes the effect column command.
// Unknown commands are decoded as EffectNone.
func ConvertEffect(effectType, param uint8) Effect {
	e := Effect{Arg: param}
	hi := param >> 4
	lo := param & 0x0F

	switch effectType {
	case 0x00:
		if param != 0 {
			e.Op = EffectArpeggio
		}
	case 0x01:
		e.Op = EffectPortamentoUp
	case 0x02:
		e.Op = EffectPortamentoDown
	case 0x03:
		e.Op = EffectTonePortamento
	case 0x04:
		e.Op = EffectVibrato
	case 0x05:
		e.Op = EffectTonePortamentoVolumeSlide
	case 0x06:
		e.Op = EffectVibratoVolumeSlide
	case 0x07:
		e.Op = EffectTremolo
	case 0x08:
		e.Op = EffectSetPanning
	case 0x09:
		e.Op = EffectSampleOffset
	case 0x0A:
		e.Op = EffectVolumeSlide
	case 0x0B:
		e.Op = EffectPositionJump
	case 0x0C:
		e.Op = EffectSetVolume
	case 0x0D:
		e.Op = EffectPatternBreak
	case 0x0E:
		e = convertExtendedEffect(hi, lo)
	case 0x0F:
		if param < 0x20 {
			e.Op = EffectSetTempo
		} else {
			e.Op = EffectSetBPM
		}
	case 0x10:
		e.Op = EffectSetGlobalVolume
	case 0x11:
		e.Op = EffectGlobalVolumeSlide
	case 0x14:
		e.Op = EffectKeyOff
	case 0x15:
		e.Op = EffectSetEnvelopePos
	case 0x19:
		e.Op = EffectPanningSlide
	case 0x1B:
		e.Op = EffectMultiRetrigger
	case 0x1D:
		e.Op = EffectTremor
	case 0x21:
		e.Arg = lo
		switch hi {
		case 0x1:
			e.Op = EffectExtraFinePortamentoUp
		case 0x2:
			e.Op = EffectExtraFinePortamentoDown
		}
	}

	return e
}

func convertExtendedEffect(hi, lo uint8) Effect {
	e := Effect{Arg: lo}
	switch hi {
	case 0x1:
		e.Op = EffectFinePortamentoUp
	case 0x2:
		e.Op = EffectFinePortamentoDown
	case 0x3:
		e.Op = EffectGlissando
	case 0x4:
		e.Op = EffectVibratoWaveform
	case 0x5:
		e.Op = EffectSetFinetune
	case 0x6:
		e.Op = EffectPatternLoop
	case 0x7:
		e.Op = EffectTremoloWaveform
	case 0x9:
		e.Op = EffectRetrigger
	case 0xA:
		e.Op = EffectFineVolumeSlideUp
	case 0xB:
		e.Op = EffectFineVolumeSlideDown
	case 0xC:
		e.Op = EffectNoteCut
	case 0xD:
		e.Op = EffectNoteDelay
	case 0xE:
		e.Op = EffectPatternDelay
	}
	return e
}

// EffectFromVolumeByte decodes the volume column command.
func EffectFromVolumeByte(v uint8) Effect {
	var e Effect

	lo := v & 0x0F
	switch {
	case v <= 0x0F:
		// Do nothing.

	case v <= 0x50:
		// Set volume effect.
		e.Op = EffectSetVolume
		e.Arg = v - 0x10

	case v < 0x60:
		// Undefined.

	default:
		e.Arg = lo
		switch v >> 4 {
		case 0x6:
			e.Op = EffectVolumeSlideDown
		case 0x7:
			e.Op = EffectVolumeSlideUp
		case 0x8:
			e.Op = EffectFineVolumeSlideDown
		case 0x9:
			e.Op = EffectFineVolumeSlideUp
		case 0xA:
			e.Op = EffectVibratoSpeed
		case 0xB:
			e.Op = EffectVibratoDepth
		case 0xC:
			e.Op = EffectSetPanning
			e.Arg = lo << 4
		case 0xD:
			e.Op = EffectPanningSlideLeft
		case 0xE:
			e.Op = EffectPanningSlideRight
		case 0xF:
			e.Op = EffectTonePortamento
			e.Arg = lo << 4
		}
	}

	return e
}

// IsGlobal reports whether the effect changes the song-wide state.
func (op EffectOp) IsGlobal() bool {
	switch op {
	case EffectSetTempo, EffectSetBPM, EffectSetGlobalVolume, EffectGlobalVolumeSlide:
		return true
	default:
		return false
	}
}

// IsTonePortamento reports whether the effect makes a note slide
// towards the row note instead of triggering it.
func (op EffectOp) IsTonePortamento() bool {
	return op == EffectTonePortamento || op == EffectTonePortamentoVolumeSlide
}
