package xmseq

import (
	"github.com/quasilyte/xmseq/internal/xmdb"
)

func (c *Channel) applyEffect(when float64, e xmdb.Effect) {
	p := c.player
	hi, lo := e.Nibbles()

	switch e.Op {
	case xmdb.EffectNone:
		// Do nothing.

	case xmdb.EffectArpeggio:
		c.arpeggio(when, hi, lo)

	case xmdb.EffectPortamentoUp:
		c.portamento(when, true, rememberRate(&c.portamentoUpRate, e.Arg))
	case xmdb.EffectPortamentoDown:
		c.portamento(when, false, rememberRate(&c.portamentoDownRate, e.Arg))
	case xmdb.EffectFinePortamentoUp:
		c.portamento(when, true, float64(e.Arg)/float64(p.tempo))
	case xmdb.EffectFinePortamentoDown:
		c.portamento(when, false, float64(e.Arg)/float64(p.tempo))
	case xmdb.EffectExtraFinePortamentoUp:
		c.portamento(when, true, float64(e.Arg)/(0x40*float64(p.tempo)))
	case xmdb.EffectExtraFinePortamentoDown:
		c.portamento(when, false, float64(e.Arg)/(0x40*float64(p.tempo)))

	case xmdb.EffectTonePortamento:
		rememberRate(&c.portamentoRate, e.Arg)
		c.portamentoToTarget(when)
	case xmdb.EffectTonePortamentoVolumeSlide:
		c.portamentoToTarget(when)
		c.volumeSlideCommand(when, e.Arg)

	case xmdb.EffectVibrato:
		if hi != 0 {
			c.vibratoMemory.rate = int(hi) << 2
		}
		if lo != 0 {
			c.vibratoMemory.depth = int(lo)
		}
		c.setModulation(when, &c.vibrato, &c.vibratoMemory, c.vibratoMemory.recalled(), true)
	case xmdb.EffectVibratoVolumeSlide:
		c.setModulation(when, &c.vibrato, &c.vibratoMemory, c.vibratoMemory.recalled(), true)
		c.volumeSlideCommand(when, e.Arg)
	case xmdb.EffectVibratoSpeed:
		c.vibratoMemory.rate = int(e.Arg) << 2
		c.setModulation(when, &c.vibrato, &c.vibratoMemory, modRate, false)
	case xmdb.EffectVibratoDepth:
		c.vibratoMemory.depth = int(e.Arg)
		c.setModulation(when, &c.vibrato, &c.vibratoMemory, modDepth, true)
	case xmdb.EffectVibratoWaveform:
		c.vibratoMemory.waveform = commandWaveform(e.Arg)
		c.vibratoMemory.hasWaveform = true

	case xmdb.EffectTremolo:
		if hi != 0 {
			c.tremoloMemory.rate = int(hi) << 2
		}
		if lo != 0 {
			c.tremoloMemory.depth = int(lo)
		}
		c.setModulation(when, &c.tremolo, &c.tremoloMemory, c.tremoloMemory.recalled(), true)
	case xmdb.EffectTremoloWaveform:
		c.tremoloMemory.waveform = commandWaveform(e.Arg)
		c.tremoloMemory.hasWaveform = true

	case xmdb.EffectTremor:
		c.tremor(when, int(hi)+1, int(lo)+1)

	case xmdb.EffectSetVolume:
		c.setVolume(when, clamp(float64(e.Arg), 0, 0x40))
	case xmdb.EffectVolumeSlide:
		c.volumeSlideCommand(when, e.Arg)
	case xmdb.EffectVolumeSlideDown:
		c.volumeSlide(when, false, float64(e.Arg))
	case xmdb.EffectVolumeSlideUp:
		c.volumeSlide(when, true, float64(e.Arg))
	case xmdb.EffectFineVolumeSlideUp:
		c.volumeSlide(when, true, float64(e.Arg)/float64(p.tempo))
	case xmdb.EffectFineVolumeSlideDown:
		c.volumeSlide(when, false, float64(e.Arg)/float64(p.tempo))

	case xmdb.EffectSetPanning:
		c.setPanning(when, float64(e.Arg))
	case xmdb.EffectPanningSlide:
		if hi != 0 {
			c.panningSlide(when, true, float64(hi))
		} else {
			c.panningSlide(when, false, float64(lo))
		}
	case xmdb.EffectPanningSlideLeft:
		c.panningSlide(when, false, float64(e.Arg))
	case xmdb.EffectPanningSlideRight:
		c.panningSlide(when, true, float64(e.Arg))

	case xmdb.EffectPositionJump:
		p.jumpToPosition(int(e.Arg))
	case xmdb.EffectPatternBreak:
		p.breakPattern(int(hi)*10 + int(lo))
	case xmdb.EffectPatternLoop:
		c.patternLoop(int(e.Arg))

	case xmdb.EffectRetrigger:
		c.retrigger(when, int(e.Arg), 8)
	case xmdb.EffectMultiRetrigger:
		c.retrigger(when, int(lo), hi)

	case xmdb.EffectNoteCut:
		if int(e.Arg) < p.tempo {
			c.cutNote(when + float64(e.Arg)*p.TickDuration())
		}
	case xmdb.EffectKeyOff:
		if int(e.Arg) < p.tempo {
			c.releaseNote(when + float64(e.Arg)*p.TickDuration())
		}
	case xmdb.EffectSetEnvelopePos:
		c.jumpEnvelope(when, &c.volumeEnvelope, int(e.Arg))

	case xmdb.EffectSampleOffset, xmdb.EffectSetFinetune, xmdb.EffectNoteDelay:
		// Handled before the note is triggered.

	case xmdb.EffectSetTempo, xmdb.EffectSetBPM, xmdb.EffectSetGlobalVolume, xmdb.EffectGlobalVolumeSlide:
		// Handled by the player.

	case xmdb.EffectGlissando, xmdb.EffectPatternDelay:
		// Not supported.
	}
}

// rememberRate updates the effect memory unless arg is 0.
// It returns the rate to use.
func rememberRate(memory *float64, arg uint8) float64 {
	if arg != 0 {
		*memory = float64(arg)
	}
	return *memory
}

// volumeSlideCommand handles the Axy-style argument:
// x slides up, y slides down, 0 reuses the previous argument.
func (c *Channel) volumeSlideCommand(when float64, arg uint8) {
	if arg == 0 {
		arg = c.volumeSlideArg
	}
	c.volumeSlideArg = arg
	hi := arg >> 4
	lo := arg & 0x0F
	if hi != 0 {
		c.volumeSlide(when, true, float64(hi))
	} else {
		c.volumeSlide(when, false, float64(lo))
	}
}

func (c *Channel) patternLoop(arg int) {
	p := c.player
	if arg == 0 {
		c.patternLoopRow = p.row
		return
	}
	if c.patternLoopCount == 0 {
		c.patternLoopCount = arg
	} else {
		c.patternLoopCount--
	}
	if c.patternLoopCount != 0 {
		p.loopPatternRow(c.patternLoopRow)
	}
}

// retrigger restarts the note every interval ticks in this row.
// volumeChange uses the multi retrigger encoding; 8 keeps the volume.
func (c *Channel) retrigger(when float64, interval int, volumeChange uint8) {
	p := c.player
	if interval == 0 || c.noteNum == 0 || c.instrument == nil {
		return
	}
	td := p.TickDuration()
	for tick := interval; tick < p.tempo; tick += interval {
		t := when + float64(tick)*td
		v := retriggerVolume(c.volume, volumeChange)
		c.triggerNote(t, c.noteNum, 0, 0)
		c.setVolume(t, v)
	}
}

func retriggerVolume(v float64, change uint8) float64 {
	switch change {
	case 1, 2, 3, 4, 5:
		v -= float64(int(1) << (change - 1))
	case 6:
		v = v * 2 / 3
	case 7:
		v /= 2
	case 9, 0xA, 0xB, 0xC, 0xD:
		v += float64(int(1) << (change - 9))
	case 0xE:
		v = v * 3 / 2
	case 0xF:
		v *= 2
	}
	return clamp(v, 0, 0x40)
}

// tremor toggles the note volume: on ticks at full volume, off ticks silent.
func (c *Channel) tremor(when float64, on, off int) {
	p := c.player
	c.tremorActive = true
	if c.phase == PhaseOff {
		return
	}
	td := p.TickDuration()
	g := c.tremoloNode.Gain()
	for tick := 0; tick < p.tempo; tick++ {
		v := 1.0
		if c.tremorPos%(on+off) >= on {
			v = 0
		}
		g.SetValueAtTime(v, when+float64(tick)*td)
		c.tremorPos++
	}
	g.SetValueAtTime(1, when+p.RowDuration())
}
