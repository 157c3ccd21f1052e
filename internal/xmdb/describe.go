package xmdb

import (
	"fmt"
	"strconv"
	"strings"
)

var noteLetters = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// volumeEffectLetters are indexed by (volume>>4)-6.
var volumeEffectLetters = [10]string{"-", "+", "▼", "▲", "S", "V", "P", "◀", "▶", "M"}

// NoteName returns a tracker-style note name like "C-4".
func NoteName(num uint8) string {
	switch {
	case num == 0:
		return "···"
	case num == 97:
		return "off"
	case num > 97:
		return "err"
	default:
		n := int(num) - 1
		return noteLetters[n%12] + strconv.Itoa(n/12)
	}
}

func FormatInstrument(inst uint8) string {
	if inst == 0 {
		return "··"
	}
	return fmt.Sprintf("%02x", inst)
}

// FormatVolume returns a compact volume column text.
func FormatVolume(v uint8) string {
	switch {
	case v == 0:
		return "··"
	case v < 0x60:
		return fmt.Sprintf("%02x", v)
	default:
		return volumeEffectLetters[(v>>4)-6] + strconv.FormatInt(int64(v&0xF), 16)
	}
}

// FormatEffect returns a compact effect column text.
// The effect type is printed as a base-36 digit, like trackers do.
func FormatEffect(effectType, param uint8) string {
	if effectType == 0 && param == 0 {
		return "···"
	}
	return strings.ToUpper(strconv.FormatInt(int64(effectType), 36)) + fmt.Sprintf("%02x", param)
}

// WaveformName describes the vibrato/tremolo waveform selection of E4x and E7x.
func WaveformName(arg uint8) string {
	name := ""
	switch arg & 3 {
	case 0:
		name = "sine"
	case 1:
		name = "ramp down"
	default:
		name = "square"
	}
	if arg&4 != 0 {
		return "continuous " + name
	}
	return name
}

// Describe returns the tooltips for the note cells:
// note, instrument, volume, effect type and effect parameter.
// An empty string means there is nothing to say about the cell.
func Describe(note, instrument, volume, effectType, effectParam uint8) [5]string {
	var result [5]string

	switch {
	case note == 0:
	case note == 97:
		result[0] = "release note"
	case note > 97:
		result[0] = "invalid note"
	default:
		result[0] = "trigger note"
	}

	result[2] = describeVolume(volume)

	// The same tooltip is used for the effect and its parameter
	// since they're tightly coupled.
	effect := describeEffect(effectType, effectParam)
	result[3] = effect
	result[4] = effect

	return result
}

func describeVolume(v uint8) string {
	e := EffectFromVolumeByte(v)
	lo := v & 0x0F
	switch e.Op {
	case EffectSetVolume:
		return fmt.Sprintf("set volume to %#x / 0x40", e.Arg)
	case EffectVolumeSlideDown:
		return fmt.Sprintf("volume slide down by %#x / 0x40 per tick", lo)
	case EffectVolumeSlideUp:
		return fmt.Sprintf("volume slide up by %#x / 0x40 per tick", lo)
	case EffectFineVolumeSlideDown:
		return fmt.Sprintf("fine volume slide down by %#x / 0x40 per row", lo)
	case EffectFineVolumeSlideUp:
		return fmt.Sprintf("fine volume slide up by %#x / 0x40 per row", lo)
	case EffectVibratoSpeed:
		return fmt.Sprintf("set vibrato speed to %#x / 64 cycles per tick", lo)
	case EffectVibratoDepth:
		return fmt.Sprintf("vibrato with depth %#x / 16 semitones", lo)
	case EffectSetPanning:
		return fmt.Sprintf("set panning to %#x / 0xf right", lo)
	case EffectPanningSlideLeft:
		return fmt.Sprintf("panning slide left by %#x / 0xff per tick", lo)
	case EffectPanningSlideRight:
		return fmt.Sprintf("panning slide right by %#x / 0xff per tick", lo)
	case EffectTonePortamento:
		return fmt.Sprintf("portamento towards this note by %#x 16ths of a semitone per tick", e.Arg)
	default:
		return ""
	}
}

func describeVolumeSlide(hi, lo uint8) string {
	if hi != 0 {
		return fmt.Sprintf("up by %d / 0x40 per tick", hi)
	}
	return fmt.Sprintf("down by %d / 0x40 per tick", lo)
}

func describeEffect(effectType, param uint8) string {
	e := ConvertEffect(effectType, param)
	hi := param >> 4
	lo := param & 0x0F

	switch e.Op {
	case EffectArpeggio:
		return fmt.Sprintf("arpeggio: rotate pitch once per tick in this row, among the original, %d semitones up, and %d semitones up", hi, lo)
	case EffectPortamentoUp:
		return fmt.Sprintf("portamento up by %#x 16ths of a semitone per tick in this row", param)
	case EffectPortamentoDown:
		return fmt.Sprintf("portamento down by %#x 16ths of a semitone per tick in this row", param)
	case EffectTonePortamento:
		return fmt.Sprintf("portamento towards this note (instead of triggering it) by %#x 16ths of a semitone per tick in this row", param)
	case EffectVibrato:
		return fmt.Sprintf("vibrato with speed %d / 64 cycles per tick and depth %d / 16 semitones", hi, lo)
	case EffectTonePortamentoVolumeSlide:
		return "portamento towards this note (instead of triggering it), and volume slide " + describeVolumeSlide(hi, lo)
	case EffectVibratoVolumeSlide:
		return "continue vibrato, and volume slide " + describeVolumeSlide(hi, lo)
	case EffectTremolo:
		return fmt.Sprintf("tremolo with speed %d / 64 cycles per tick and depth %d / 16 of the full volume", hi, lo)
	case EffectSetPanning:
		return fmt.Sprintf("set panning to %#x / 0xff right", param)
	case EffectSampleOffset:
		return fmt.Sprintf("start playing the sample for this note at %#x * 0x100 bytes into the sample", param)
	case EffectVolumeSlide:
		return "volume slide " + describeVolumeSlide(hi, lo)
	case EffectPositionJump:
		return fmt.Sprintf("jump to song position %#x in pattern order table", param)
	case EffectSetVolume:
		return fmt.Sprintf("set volume to %#x / 0x40", param)
	case EffectPatternBreak:
		return fmt.Sprintf("jump to row %d%d in next pattern in pattern order table", hi, lo)
	case EffectFinePortamentoUp:
		return fmt.Sprintf("fine portamento up by %d 16ths of a semitone", lo)
	case EffectFinePortamentoDown:
		return fmt.Sprintf("fine portamento down by %d 16ths of a semitone", lo)
	case EffectGlissando:
		state := "on"
		if lo != 0 {
			state = "off"
		}
		return "turn " + state + " glissando mode (rounding portamento pitches to the nearest semitone)"
	case EffectVibratoWaveform:
		return "set vibrato waveform to " + WaveformName(lo)
	case EffectSetFinetune:
		return fmt.Sprintf("set finetune to %d / 8 semitones", int(lo)-8)
	case EffectPatternLoop:
		if lo == 0 {
			return "loop start point"
		}
		return fmt.Sprintf("loop end point; loop back to the start point (or the start of the whole pattern if there is none in this channel) %d times", lo)
	case EffectTremoloWaveform:
		return "set tremolo waveform to " + WaveformName(lo)
	case EffectRetrigger:
		return fmt.Sprintf("retrigger note every %d ticks in this row", lo)
	case EffectFineVolumeSlideUp:
		return fmt.Sprintf("fine volume slide up by %d / 0x40", lo)
	case EffectFineVolumeSlideDown:
		return fmt.Sprintf("fine volume slide down by %d / 0x40", lo)
	case EffectNoteCut:
		return fmt.Sprintf("note cut: set note volume to 0 at tick %d in this row", lo)
	case EffectNoteDelay:
		return fmt.Sprintf("delay note to tick %d in this row", lo)
	case EffectPatternDelay:
		return fmt.Sprintf("delay progression of whole pattern for the duration that %d rows normally would have played", lo)
	case EffectSetTempo:
		if param == 0 {
			return "stop playback"
		}
		return fmt.Sprintf("set tempo to %d ticks per row", param)
	case EffectSetBPM:
		return fmt.Sprintf("set BPM to %d (%g ticks per second)", param, float64(param)/2.5)
	case EffectSetGlobalVolume:
		return fmt.Sprintf("set global volume to %#x / 0x40", param)
	case EffectGlobalVolumeSlide:
		return "global volume slide " + describeVolumeSlide(hi, lo)
	case EffectKeyOff:
		return fmt.Sprintf("release note at tick %d in this row", param)
	case EffectSetEnvelopePos:
		return fmt.Sprintf("volume envelope jump to %d ticks", param)
	case EffectPanningSlide:
		if hi != 0 {
			return fmt.Sprintf("panning slide right by %d / 0xff per tick", hi)
		}
		return fmt.Sprintf("panning slide left by %d / 0xff per tick", lo)
	case EffectMultiRetrigger:
		return fmt.Sprintf("retrigger note every %d ticks in this row", lo) + multiRetriggerText[hi]
	case EffectTremor:
		return fmt.Sprintf("tremor: toggle note volume between full (for %d ticks) and zero (for %d ticks)", hi+1, lo+1)
	case EffectExtraFinePortamentoUp:
		return fmt.Sprintf("extra fine portamento up by %d / 64 16ths of a semitone", lo)
	case EffectExtraFinePortamentoDown:
		return fmt.Sprintf("extra fine portamento down by %d / 64 16ths of a semitone", lo)
	default:
		return ""
	}
}

var multiRetriggerText = [16]string{
	", sliding note volume by the previous value of this parameter",
	", sliding note volume down by 1 / 0x40 per retrigger",
	", sliding note volume down by 2 / 0x40 per retrigger",
	", sliding note volume down by 4 / 0x40 per retrigger",
	", sliding note volume down by 8 / 0x40 per retrigger",
	", sliding note volume down by 16 / 0x40 per retrigger",
	", sliding note volume to 2/3 of its previous value each retrigger",
	", sliding note volume to 1/2 of its previous value each retrigger",
	"",
	", sliding note volume up by 1 / 0x40 per retrigger",
	", sliding note volume up by 2 / 0x40 per retrigger",
	", sliding note volume up by 4 / 0x40 per retrigger",
	", sliding note volume up by 8 / 0x40 per retrigger",
	", sliding note volume up by 16 / 0x40 per retrigger",
	", sliding note volume to 3/2 of its previous value each retrigger",
	", sliding note volume to twice its previous value each retrigger",
}
