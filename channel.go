package xmseq

import (
	"math"

	"github.com/quasilyte/xmseq/internal/xmdb"
)

// NotePhase is a channel note state.
type NotePhase int

const (
	// PhaseOff: nothing is playing.
	PhaseOff NotePhase = iota

	// PhaseSustain: the note is playing and its envelopes hold at the sustain points.
	PhaseSustain

	// PhaseRelease: the note was released, the envelopes and fadeout run to the end.
	PhaseRelease
)

func (p NotePhase) String() string {
	switch p {
	case PhaseSustain:
		return "sustain"
	case PhaseRelease:
		return "release"
	default:
		return "off"
	}
}

const (
	// The cut is a quick exponential fade to avoid the clicks.
	cutTimeConstant = 0.1
	cutStopDelay    = 0.2
)

// Channel is a single pattern column voice.
//
// Every triggered note gets its own audio graph:
//
//	source -> tremolo -> [panning envelope] -> panning -> [volume envelope] -> volume -> master
//
// The previous note graph is faded out and left to the host
// to dispose once it stops.
type Channel struct {
	player *Player
	index  int

	phase           NotePhase
	lastTriggerTime float64
	releaseTime     float64

	noteNum    int
	instrument *Instrument
	sample     *Sample

	// volume is in [0, 0x40].
	volume float64

	// panning is in [0, 0xff].
	panning float64

	// Playback rate at the end of the last scheduled pitch change
	// and the tone portamento target.
	nextPbr   float64
	targetPbr float64

	portamentoRate     float64
	portamentoUpRate   float64
	portamentoDownRate float64
	volumeSlideArg     uint8

	finetuneOverride    int
	hasFinetuneOverride bool

	vibrato       modulation
	tremolo       modulation
	vibratoMemory modulationMemory
	tremoloMemory modulationMemory

	tremorPos    int
	tremorActive bool

	patternLoopRow   int
	patternLoopCount int

	volumeNode      GainNode
	tremoloNode     GainNode
	panningNode     PannerNode
	source          BufferSourceNode
	volumeEnvelope  envelopeRunner
	panningEnvelope envelopeRunner
}

func newChannel(p *Player, index int) *Channel {
	return &Channel{
		player:  p,
		index:   index,
		panning: 0x80,
		vibrato: modulation{kind: modVibrato},
		tremolo: modulation{kind: modTremolo},
		volumeEnvelope: envelopeRunner{
			convert: volumeEnvelopeValue,
		},
		panningEnvelope: envelopeRunner{
			convert: panningEnvelopeValue,
		},
	}
}

func (c *Channel) Index() int { return c.index }

func (c *Channel) Phase() NotePhase { return c.phase }

// NoteNum returns the last triggered note number.
func (c *Channel) NoteNum() int { return c.noteNum }

// Volume returns the note volume in [0, 0x40].
func (c *Channel) Volume() float64 { return c.volume }

// Panning returns the note panning in [0, 0xff].
func (c *Channel) Panning() float64 { return c.panning }

// PlaybackRate returns the rate the current note pitch changes lead to.
func (c *Channel) PlaybackRate() float64 { return c.nextPbr }

// ApplyCommand applies a single pattern cell to this channel.
// The cell effects start at the specified time.
func (c *Channel) ApplyCommand(when float64, n Note) {
	p := c.player
	effect := xmdb.ConvertEffect(n.EffectType, n.EffectParam)
	volume := xmdb.EffectFromVolumeByte(n.Volume)

	// Global effects are not affected by the note delay.
	if effect.Op.IsGlobal() {
		p.applyGlobalEffect(when, effect)
	}

	offsetBytes := 0
	if effect.Op == xmdb.EffectSampleOffset {
		offsetBytes = int(effect.Arg) * 256
	}

	c.hasFinetuneOverride = false
	if effect.Op == xmdb.EffectSetFinetune {
		c.finetuneOverride = (int(effect.Arg) - 8) * 16
		c.hasFinetuneOverride = true
	}

	delay := 0.0
	if effect.Op == xmdb.EffectNoteDelay {
		if int(effect.Arg) >= p.tempo {
			// The note is delayed past the row end: ignore the row.
			c.endRow(when)
			return
		}
		delay = float64(effect.Arg) * p.TickDuration()
	}

	noteNum := int(n.Note)
	validNote := noteNum >= 1 && noteNum <= maxNoteNum
	porta := effect.Op.IsTonePortamento() || volume.Op == xmdb.EffectTonePortamento
	switch {
	case porta:
		// Tone portamento never triggers or releases the row note.
		if validNote && c.phase != PhaseOff {
			c.retargetPortamento(when, noteNum)
		}
	case effect.Op == xmdb.EffectPatternDelay:
		// Pattern delay rows play no notes.
	case noteNum == NoteOff:
		c.releaseNote(when + delay)
	case validNote:
		c.triggerNote(when+delay, noteNum, int(n.Instrument), offsetBytes)
	}

	c.applyEffect(when+delay, volume)
	c.applyEffect(when+delay, effect)

	c.endRow(when)
}

func (c *Channel) endRow(when float64) {
	c.discontinueModulation(when, &c.vibrato)
	c.discontinueModulation(when, &c.tremolo)
	if !c.tremorActive {
		c.tremorPos = 0
	}
	c.tremorActive = false
}

func (c *Channel) currentFinetune() int {
	if c.hasFinetuneOverride {
		return c.finetuneOverride
	}
	return c.sample.Finetune
}

func (c *Channel) triggerNote(when float64, noteNum, instrumentNum, offsetBytes int) {
	p := c.player
	c.cutNote(when)

	if instrumentNum > 0 {
		c.instrument = nil
		if instrumentNum <= len(p.module.Instruments) {
			c.instrument = &p.module.Instruments[instrumentNum-1]
		}
	}
	c.noteNum = noteNum

	inst := c.instrument
	if inst == nil {
		return
	}
	s := inst.sampleFor(noteNum)
	if s == nil || len(s.Data) == 0 {
		return
	}

	c.phase = PhaseSustain
	c.lastTriggerTime = when
	c.sample = s
	c.nextPbr = ComputePlaybackRate(noteNum, s.RelativeNote, c.currentFinetune())
	c.targetPbr = c.nextPbr

	c.buildGraph(inst, s)

	c.source.PlaybackRate().SetValueAtTime(c.nextPbr, when)
	if s.LoopType != LoopNone {
		start, end := s.LoopBounds()
		c.source.SetLoop(start, end, s.LoopType == LoopPingPong)
	}

	c.volume = float64(s.Volume)
	c.panning = float64(s.Panning)
	c.setVolume(when, c.volume)
	c.setPanning(when, c.panning)

	c.triggerEnvelope(when, &c.volumeEnvelope, 0)
	c.triggerEnvelope(when, &c.panningEnvelope, 0)

	c.vibrato.resetFromInstrument(inst)
	c.tremolo.resetFromInstrument(nil)
	c.triggerModulation(when, &c.vibrato)

	offset := float64(offsetBytes) / float64(s.BytesPerSample) / SampleRate
	c.source.Start(when, offset)

	p.emit(PlayerEvent{
		Kind:    EventNote,
		Channel: c.index,
		Time:    when,
		value:   packNoteEventData(noteNum, instrumentNum, float32(s.Volume)/64),
	})
}

func (c *Channel) buildGraph(inst *Instrument, s *Sample) {
	h := c.player.host

	c.volumeNode = h.NewGain()
	c.volumeNode.Connect(c.player.master)
	var next AudioNode = c.volumeNode

	c.volumeEnvelope.env = inst.VolumeEnvelope
	c.volumeEnvelope.param = nil
	if inst.VolumeEnvelope != nil {
		g := h.NewGain()
		g.Connect(next)
		c.volumeEnvelope.param = g.Gain()
		next = g
	}

	c.panningNode = h.NewPanner()
	c.panningNode.Connect(next)
	next = c.panningNode

	c.panningEnvelope.env = inst.PanningEnvelope
	c.panningEnvelope.param = nil
	if inst.PanningEnvelope != nil {
		pn := h.NewPanner()
		pn.Connect(next)
		c.panningEnvelope.param = pn.Pan()
		next = pn
	}

	c.tremoloNode = h.NewGain()
	c.tremoloNode.Connect(next)

	c.source = h.NewBufferSource(s)
	c.source.Connect(c.tremoloNode)
}

// retargetPortamento makes the note slide towards the new note
// instead of triggering it.
func (c *Channel) retargetPortamento(when float64, noteNum int) {
	c.noteNum = noteNum
	c.targetPbr = ComputePlaybackRate(noteNum, c.sample.RelativeNote, c.currentFinetune())

	// The volume and envelopes are reset like the note was triggered.
	c.setVolume(when, float64(c.sample.Volume))
	c.cutEnvelope(when, &c.volumeEnvelope)
	c.cutEnvelope(when, &c.panningEnvelope)
	c.lastTriggerTime = when
	c.triggerEnvelope(when, &c.volumeEnvelope, 0)
	c.triggerEnvelope(when, &c.panningEnvelope, 0)
}

func (c *Channel) releaseNote(when float64) {
	if c.phase != PhaseSustain {
		return
	}
	inst := c.instrument
	if inst.VolumeFadeout == 0 && inst.VolumeEnvelope == nil {
		c.cutNote(when)
		return
	}
	c.phase = PhaseRelease
	c.releaseTime = when
	c.releaseEnvelope(when, &c.volumeEnvelope)
	c.releaseEnvelope(when, &c.panningEnvelope)
	if inst.VolumeFadeout != 0 {
		c.setVolume(when, c.volume)
	}
}

func (c *Channel) cutNote(when float64) {
	if c.phase == PhaseOff {
		return
	}
	c.phase = PhaseOff

	if now := c.player.host.CurrentTime(); when < now {
		when = now
	}

	g := c.volumeNode.Gain()
	g.CancelScheduledValues(when)
	g.SetTargetAtTime(0, when, cutTimeConstant)
	c.source.Stop(when + cutStopDelay)

	c.cutEnvelope(when, &c.volumeEnvelope)
	c.cutEnvelope(when, &c.panningEnvelope)
	c.cutModulation(when, &c.vibrato)
	c.cutModulation(when, &c.tremolo)
}

// fadeoutFactor returns the remaining part of the release fadeout at the given time.
func (c *Channel) fadeoutFactor(when float64) float64 {
	if c.phase != PhaseRelease || c.instrument.VolumeFadeout == 0 {
		return 1
	}
	ticks := (when - c.releaseTime) / c.player.TickDuration()
	return clamp(1-ticks*float64(c.instrument.VolumeFadeout)/0x8000, 0, 1)
}

// fadeoutEnd returns the time the release fadeout reaches zero.
func (c *Channel) fadeoutEnd() float64 {
	return c.releaseTime + c.player.TickDuration()*0x8000/float64(c.instrument.VolumeFadeout)
}

func (c *Channel) scheduleFadeout(when float64) {
	if c.phase != PhaseRelease || c.instrument.VolumeFadeout == 0 {
		return
	}
	if end := c.fadeoutEnd(); end > when {
		c.volumeNode.Gain().LinearRampToValueAtTime(0, end)
	}
}

func (c *Channel) setVolume(when, v float64) {
	c.volume = v
	if c.phase == PhaseOff {
		return
	}
	c.volumeNode.Gain().SetValueAtTime(v/0x40*c.fadeoutFactor(when), when)
	c.scheduleFadeout(when)
}

// volumeSlide changes the volume by rate per tick during the row.
func (c *Channel) volumeSlide(when float64, up bool, rate float64) {
	old := c.volume
	delta := rate * float64(c.player.tempo)
	if !up {
		delta = -delta
	}
	c.volume = clamp(old+delta, 0, 0x40)
	if c.phase == PhaseOff {
		return
	}

	end := when + c.player.RowDuration()
	g := c.volumeNode.Gain()
	g.SetValueAtTime(old/0x40*c.fadeoutFactor(when), when)
	g.LinearRampToValueAtTime(c.volume/0x40*c.fadeoutFactor(end), end)
	c.scheduleFadeout(end)
}

func (c *Channel) setPanning(when, v float64) {
	c.panning = v
	if c.phase == PhaseOff {
		return
	}
	c.panningNode.Pan().SetValueAtTime(panValue(v), when)
}

func (c *Channel) panningSlide(when float64, right bool, rate float64) {
	old := c.panning
	delta := rate * float64(c.player.tempo)
	if !right {
		delta = -delta
	}
	c.panning = clamp(old+delta, 0, 0xff)
	if c.phase == PhaseOff {
		return
	}
	pan := c.panningNode.Pan()
	pan.SetValueAtTime(panValue(old), when)
	pan.LinearRampToValueAtTime(panValue(c.panning), when+c.player.RowDuration())
}

func panValue(v float64) float64 {
	return clamp((v-0x80)/0x80, -1, 1)
}

// portamento slides the pitch up or down by rate 16ths of a semitone per tick.
func (c *Channel) portamento(when float64, up bool, rate float64) {
	c.slidePitch(when, up, rate, 0, false)
}

// portamentoToTarget slides the pitch towards the tone portamento target.
func (c *Channel) portamentoToTarget(when float64) {
	if c.phase == PhaseOff {
		return
	}
	up := c.targetPbr > c.nextPbr
	c.slidePitch(when, up, c.portamentoRate, c.targetPbr, true)
}

func (c *Channel) slidePitch(when float64, up bool, rate, target float64, hasTarget bool) {
	if c.phase == PhaseOff {
		return
	}
	old := c.nextPbr
	factor := portamentoFactor(rate, c.player.tempo)
	pbr := old / factor
	if up {
		pbr = old * factor
	}

	duration := c.player.RowDuration()
	if hasTarget && ((up && pbr > target) || (!up && pbr < target)) {
		// End the ramp exactly on the target.
		duration *= math.Log(target/old) / math.Log(pbr/old)
		pbr = target
	}

	pr := c.source.PlaybackRate()
	pr.SetValueAtTime(old, when)
	pr.ExponentialRampToValueAtTime(pbr, when+duration)
	c.nextPbr = pbr
}

func (c *Channel) arpeggio(when float64, hi, lo uint8) {
	if c.phase == PhaseOff {
		return
	}
	base := c.nextPbr
	pitches := [3]float64{
		base,
		base * math.Pow(2, float64(hi)/12),
		base * math.Pow(2, float64(lo)/12),
	}
	td := c.player.TickDuration()
	pr := c.source.PlaybackRate()
	for tick := 0; tick < c.player.tempo; tick++ {
		pr.SetValueAtTime(pitches[tick%3], when+float64(tick)*td)
	}
	pr.SetValueAtTime(base, when+c.player.RowDuration())
}
