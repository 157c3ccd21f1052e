package xmseq

// modulation is a vibrato or tremolo generator.
//
// An oscillator drives an amplitude gain node that is connected
// to the modulated param: the buffer source detune for vibrato
// and the tremolo gain for tremolo.
//
// The instrument autovibrato and the pattern vibrato commands
// share the same generator; a vibrato started by the pattern commands
// is "dynamic" and lasts only while the following rows keep it going.
type modulation struct {
	kind modulationKind

	waveform modulationWaveform
	sweep    int
	depth    int
	rate     int

	on bool

	// dynamic is true when the current settings come from the pattern commands.
	dynamic bool

	// sustained is set by every row command that keeps the dynamic modulation going.
	sustained bool

	osc OscillatorNode
	amp GainNode
}

type modulationKind int

const (
	modVibrato modulationKind = iota
	modTremolo
)

type modulationWaveform int

const (
	waveformSine modulationWaveform = iota
	waveformSquare
	waveformSawDown
	waveformSawUp
)

// modulationMemory keeps the last pattern vibrato/tremolo settings.
type modulationMemory struct {
	rate     int
	depth    int
	waveform modulationWaveform

	hasWaveform bool
}

// modulationField is a set of modulation settings changed by a command.
type modulationField uint8

const (
	modRate modulationField = 1 << iota
	modDepth
	modWaveform
)

// recalled returns the settings a command without explicit
// arguments takes from the memory; zero values are not remembered.
func (mem *modulationMemory) recalled() modulationField {
	var fields modulationField
	if mem.rate != 0 {
		fields |= modRate
	}
	if mem.depth != 0 {
		fields |= modDepth
	}
	if mem.hasWaveform {
		fields |= modWaveform
	}
	return fields
}

func instrumentWaveform(vibratoType uint8) modulationWaveform {
	if vibratoType > uint8(waveformSawUp) {
		return waveformSine
	}
	return modulationWaveform(vibratoType)
}

// commandWaveform decodes the E4x/E7x waveform selector.
func commandWaveform(arg uint8) modulationWaveform {
	switch arg & 3 {
	case 0:
		return waveformSine
	case 1:
		return waveformSawDown
	default:
		return waveformSquare
	}
}

func (m *modulation) hostWaveform() Waveform {
	switch m.waveform {
	case waveformSquare:
		return WaveSquare
	case waveformSawDown, waveformSawUp:
		return WaveSawtooth
	default:
		return WaveSine
	}
}

// amplitude returns the oscillator gain in the modulated param units.
func (m *modulation) amplitude() float64 {
	var v float64
	switch m.kind {
	case modVibrato:
		// Depth is in 16ths of a semitone, detune is in cents.
		v = float64(m.depth) * 100 / 16
	case modTremolo:
		// Depth is in 16ths of the full volume.
		v = float64(m.depth) / 16
	}
	if m.waveform == waveformSawDown {
		// Saw down is a sign-inverted sawtooth.
		v = -v
	}
	return v
}

// frequency converts the rate (256ths of a cycle per tick) to Hz.
func (m *modulation) frequency(tickDuration float64) float64 {
	return float64(m.rate) / (tickDuration * 256)
}

func (m *modulation) active() bool {
	return m.depth != 0 && m.rate != 0
}

func (m *modulation) resetFromInstrument(inst *Instrument) {
	m.dynamic = false
	m.sustained = false
	if m.kind != modVibrato || inst == nil {
		m.waveform = waveformSine
		m.sweep = 0
		m.depth = 0
		m.rate = 0
		return
	}
	m.waveform = instrumentWaveform(inst.VibratoType)
	m.sweep = int(inst.VibratoSweep)
	m.depth = int(inst.VibratoDepth)
	m.rate = int(inst.VibratoRate)
}

func (c *Channel) modulationTarget(m *modulation) AudioParam {
	if m.kind == modVibrato {
		return c.source.Detune()
	}
	return c.tremoloNode.Gain()
}

func (c *Channel) triggerModulation(when float64, m *modulation) {
	c.cutModulation(when, m)
	if !m.active() || c.source == nil {
		return
	}

	host := c.player.host
	td := c.player.TickDuration()

	m.osc = host.NewOscillator()
	m.osc.SetWaveform(m.hostWaveform())
	m.osc.Frequency().SetValueAtTime(m.frequency(td), when)

	m.amp = host.NewGain()
	gain := m.amp.Gain()
	if m.sweep > 0 {
		gain.SetValueAtTime(0, when)
		gain.LinearRampToValueAtTime(m.amplitude(), when+float64(m.sweep)*td)
	} else {
		gain.SetValueAtTime(m.amplitude(), when)
	}

	m.osc.Connect(m.amp)
	m.amp.ConnectParam(c.modulationTarget(m))
	m.osc.Start(when)
	m.on = true
}

func (c *Channel) cutModulation(when float64, m *modulation) {
	if !m.on {
		return
	}
	m.on = false
	freq := m.osc.Frequency()
	if freq.Value() == 0 {
		// Some hosts fail to stop an oscillator at zero frequency.
		freq.SetValueAtTime(1, when)
	}
	m.osc.Stop(when)
	m.osc = nil
	m.amp = nil
}

// setModulation applies the pattern vibrato/tremolo settings.
// Only the settings listed in fields are taken from the memory, the other ones
// keep their current values (which can come from the autovibrato).
// A running modulation is updated in place; a stopped one is started
// only if trigger is true.
func (c *Channel) setModulation(when float64, m *modulation, mem *modulationMemory, fields modulationField, trigger bool) {
	m.dynamic = true
	m.sustained = true
	m.sweep = 0
	if fields&modRate != 0 {
		m.rate = mem.rate
	}
	if fields&modDepth != 0 {
		m.depth = mem.depth
	}
	if fields&modWaveform != 0 {
		m.waveform = mem.waveform
	}

	if c.phase == PhaseOff {
		return
	}

	if m.on {
		if !m.active() {
			c.cutModulation(when, m)
			return
		}
		m.osc.SetWaveform(m.hostWaveform())
		m.osc.Frequency().SetValueAtTime(m.frequency(c.player.TickDuration()), when)
		m.amp.Gain().SetValueAtTime(m.amplitude(), when)
		return
	}

	if trigger {
		c.triggerModulation(when, m)
	}
}

// discontinueModulation stops the dynamic modulation that was not
// sustained by the current row; vibrato falls back to the instrument autovibrato.
func (c *Channel) discontinueModulation(when float64, m *modulation) {
	if m.dynamic && !m.sustained {
		c.cutModulation(when, m)
		if m.kind == modVibrato {
			m.resetFromInstrument(c.instrument)
			if c.phase != PhaseOff && m.active() {
				c.triggerModulation(when, m)
			}
		} else {
			m.resetFromInstrument(nil)
		}
	}
	m.sustained = false
}
