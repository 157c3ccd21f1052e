package xmseq

import (
	"testing"
)

func TestComputePlaybackRate(t *testing.T) {
	tests := []struct {
		note     int
		relative int
		finetune int
		want     float64
	}{
		{49, 0, 0, 8363.0 / 44100},
		{61, 0, 0, 2 * 8363.0 / 44100},
		{37, 0, 0, 0.5 * 8363.0 / 44100},
		{49, 12, 0, 2 * 8363.0 / 44100},
		{49, 0, 128 * 12, 2 * 8363.0 / 44100},
	}
	for _, test := range tests {
		have := ComputePlaybackRate(test.note, test.relative, test.finetune)
		if !approxEqual(have, test.want) {
			t.Fatalf("ComputePlaybackRate(%d, %d, %d) = %v, want %v",
				test.note, test.relative, test.finetune, have, test.want)
		}
	}
}

func TestNoteGraph(t *testing.T) {
	m := newTestModule(1)
	env := newTestEnv(t, m)
	env.player.PlayNote(Note{Note: 49, Instrument: 2}, 0)

	h := env.host
	// master, volume, volume envelope, tremolo
	if len(h.gains) != 4 {
		t.Fatalf("gains = %d, want 4", len(h.gains))
	}
	if len(h.panners) != 1 || len(h.sources) != 1 {
		t.Fatalf("panners/sources = %d/%d, want 1/1", len(h.panners), len(h.sources))
	}
	src := h.sources[0]
	if len(src.outputs) != 1 || src.outputs[0] != AudioNode(h.gains[3]) {
		t.Fatalf("the source is not connected to the tremolo node")
	}
	if h.gains[1].outputs[0] != AudioNode(h.gains[0]) {
		t.Fatalf("the volume node is not connected to the master")
	}
	if h.gains[0].outputs[0] != AudioNode(h.dest) {
		t.Fatalf("the master is not connected to the destination")
	}
	if have, want := src.playbackRate.value, 8363.0/44100; !approxEqual(have, want) {
		t.Fatalf("playback rate = %v, want %v", have, want)
	}
	if have := h.gains[1].gain.value; have != 1 {
		t.Fatalf("volume gain = %v, want 1", have)
	}
	if have := h.panners[0].pan.value; have != 0 {
		t.Fatalf("pan = %v, want 0", have)
	}
}

func TestNoteOffCut(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1}},
		{{Note: NoteOff}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	c := env.player.Channel(0)
	if c.Phase() != PhaseOff {
		t.Fatalf("phase = %v, want off", c.Phase())
	}
	src := env.host.sources[0]
	if len(src.stops) != 1 || !approxEqual(src.stops[0], 0.32) {
		t.Fatalf("source stops = %v, want [0.32]", src.stops)
	}
	g := &env.host.gains[1].gain
	if e := g.last(); e.kind != "target" || e.value != 0 || !approxEqual(e.time, 0.12) {
		t.Fatalf("volume gain last event = %+v, want a fade to 0 at 0.12", e)
	}
}

func TestNoteOffRelease(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 2}},
		{{Note: NoteOff}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	envelope := &env.host.gains[2].gain
	if e := envelope.last(); e.kind != "linear" || e.value != 0.5 || !approxEqual(e.time, 0.2) {
		t.Fatalf("envelope before release: last event = %+v, want a ramp to the sustain point", e)
	}

	env.advance(0.13)

	c := env.player.Channel(0)
	if c.Phase() != PhaseRelease {
		t.Fatalf("phase = %v, want release", c.Phase())
	}
	if len(env.host.sources[0].stops) != 0 {
		t.Fatalf("a released note was stopped")
	}
	if e := envelope.last(); e.kind != "linear" || e.value != 0 || !approxEqual(e.time, 0.4) {
		t.Fatalf("envelope after release: last event = %+v, want a ramp to 0 at 0.4", e)
	}
	volume := &env.host.gains[1].gain
	if e := volume.last(); e.kind != "linear" || e.value != 0 || !approxEqual(e.time, 0.76) {
		t.Fatalf("volume: last event = %+v, want a fadeout to 0 at 0.76", e)
	}
}

func TestVolumeSlide(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0xA, EffectParam: 0x0F}},
		{{EffectType: 0xA, EffectParam: 0xF0}},
		{{Volume: 0x30}},
		{{EffectType: 0xA, EffectParam: 0x00}},
	})
	env := newTestEnv(t, m)
	c := env.player.Channel(0)

	env.player.PlayPattern(0, 0, nil, false)
	if c.Volume() != 0 {
		t.Fatalf("volume after a slide down = %v, want 0", c.Volume())
	}
	g := &env.host.gains[1].gain
	if e := g.last(); e.kind != "linear" || e.value != 0 || !approxEqual(e.time, 0.12) {
		t.Fatalf("volume gain last event = %+v, want a ramp to 0 at 0.12", e)
	}

	env.advance(0.13)
	if c.Volume() != 0x40 {
		t.Fatalf("volume after a slide up = %v, want 0x40", c.Volume())
	}

	env.advance(0.25)
	if c.Volume() != 0x20 {
		t.Fatalf("volume after the volume column = %v, want 0x20", c.Volume())
	}

	// A00 reuses the last slide argument.
	env.advance(0.37)
	if c.Volume() != 0x40 {
		t.Fatalf("volume after A00 = %v, want 0x40", c.Volume())
	}
}

func TestTonePortamento(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1}},
		{{Note: 51, EffectType: 0x3, EffectParam: 0xFF}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	if len(env.host.sources) != 1 {
		t.Fatalf("sources = %d, want 1 (no retrigger)", len(env.host.sources))
	}
	c := env.player.Channel(0)
	target := ComputePlaybackRate(51, 0, 0)
	if c.PlaybackRate() != target {
		t.Fatalf("PlaybackRate() = %v, want %v", c.PlaybackRate(), target)
	}
	if c.NoteNum() != 51 {
		t.Fatalf("NoteNum() = %d, want 51", c.NoteNum())
	}
	e := env.host.sources[0].playbackRate.last()
	if e.kind != "exponential" || e.value != target {
		t.Fatalf("playback rate last event = %+v, want a ramp to %v", e, target)
	}
	if e.time <= 0.12 || e.time >= 0.24 {
		t.Fatalf("the ramp ends at %v, want it inside the row", e.time)
	}
}

func TestPortamentoUp(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0x1, EffectParam: 0x08}},
		{{EffectType: 0x1}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	// Two rows of 8/16 semitone per tick for 6 ticks: 6 semitones.
	want := ComputePlaybackRate(55, 0, 0)
	if have := env.player.Channel(0).PlaybackRate(); !approxEqual(have, want) {
		t.Fatalf("PlaybackRate() = %v, want %v", have, want)
	}
}

func TestVibratoRevertsToAutovibrato(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 3, EffectType: 0x4, EffectParam: 0x48}},
		{},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	h := env.host
	if len(h.oscs) != 1 {
		t.Fatalf("oscillators = %d, want 1", len(h.oscs))
	}
	// The 4xy rate is scaled by 4.
	if have, want := h.oscs[0].frequency.value, 16/(0.02*256); !approxEqual(have, want) {
		t.Fatalf("vibrato frequency = %v, want %v", have, want)
	}

	env.advance(0.13)

	if len(h.oscs) != 2 {
		t.Fatalf("oscillators = %d, want 2", len(h.oscs))
	}
	if stops := h.oscs[0].stops; len(stops) != 1 || !approxEqual(stops[0], 0.12) {
		t.Fatalf("pattern vibrato stops = %v, want [0.12]", stops)
	}
	auto := h.oscs[1]
	if len(auto.starts) != 1 || !approxEqual(auto.starts[0], 0.12) {
		t.Fatalf("autovibrato starts = %v, want [0.12]", auto.starts)
	}
	if have := auto.frequency.value; !approxEqual(have, 1.5625) {
		t.Fatalf("autovibrato frequency = %v, want 1.5625", have)
	}
	amp := auto.outputs[0].(*fakeGain)
	if have := amp.gain.value; !approxEqual(have, 25) {
		t.Fatalf("autovibrato amplitude = %v, want 25 cents", have)
	}
	if amp.params[0] != AudioParam(&h.sources[0].detune) {
		t.Fatalf("autovibrato is not connected to the source detune")
	}
}

func TestVibratoSustained(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0x4, EffectParam: 0x48}},
		{{EffectType: 0x4}},
		{},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	h := env.host
	if len(h.oscs) != 1 || len(h.oscs[0].stops) != 0 {
		t.Fatalf("the vibrato was restarted by 400")
	}

	env.advance(0.25)
	if len(h.oscs) != 1 {
		t.Fatalf("oscillators = %d, want 1", len(h.oscs))
	}
	if stops := h.oscs[0].stops; len(stops) != 1 || !approxEqual(stops[0], 0.24) {
		t.Fatalf("vibrato stops = %v, want [0.24]", stops)
	}
}

func TestTremolo(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0x7, EffectParam: 0x28}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	h := env.host
	if len(h.oscs) != 1 {
		t.Fatalf("oscillators = %d, want 1", len(h.oscs))
	}
	amp := h.oscs[0].outputs[0].(*fakeGain)
	if have := amp.gain.value; have != 0.5 {
		t.Fatalf("tremolo amplitude = %v, want 0.5", have)
	}
	tremoloNode := h.gains[2]
	if amp.params[0] != AudioParam(&tremoloNode.gain) {
		t.Fatalf("tremolo is not connected to the tremolo node gain")
	}
}

func TestNoteDelay(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0xE, EffectParam: 0xD2}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	src := env.host.sources[0]
	if len(src.starts) != 1 || !approxEqual(src.starts[0], 0.04) {
		t.Fatalf("source starts = %v, want [0.04]", src.starts)
	}
	for _, e := range env.events {
		if e.Kind == EventNote && !approxEqual(e.Time, 0.04) {
			t.Fatalf("note event time = %v, want 0.04", e.Time)
		}
	}
}

func TestNoteDelayPastRow(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0xE, EffectParam: 0xD6}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	if len(env.host.sources) != 0 {
		t.Fatalf("a note delayed past the row end was played")
	}
	if n := env.countEvents(EventNote); n != 0 {
		t.Fatalf("note events = %d, want 0", n)
	}
}

func TestNoteCut(t *testing.T) {
	tests := []struct {
		param     uint8
		wantStops []float64
		wantPhase NotePhase
	}{
		{0xC3, []float64{0.26}, PhaseOff},
		{0xC6, nil, PhaseSustain},
	}
	for _, test := range tests {
		m := newTestModule(1, []Row{
			{{Note: 49, Instrument: 1, EffectType: 0xE, EffectParam: test.param}},
		})
		env := newTestEnv(t, m)
		env.player.PlayPattern(0, 0, nil, false)

		stops := env.host.sources[0].stops
		if len(stops) != len(test.wantStops) {
			t.Fatalf("E%02X: source stops = %v, want %v", test.param, stops, test.wantStops)
		}
		for i := range stops {
			if !approxEqual(stops[i], test.wantStops[i]) {
				t.Fatalf("E%02X: source stops = %v, want %v", test.param, stops, test.wantStops)
			}
		}
		if have := env.player.Channel(0).Phase(); have != test.wantPhase {
			t.Fatalf("E%02X: phase = %v, want %v", test.param, have, test.wantPhase)
		}
	}
}

func TestRetrigger(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0xE, EffectParam: 0x93}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	h := env.host
	if len(h.sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(h.sources))
	}
	if stops := h.sources[0].stops; len(stops) != 1 || !approxEqual(stops[0], 0.26) {
		t.Fatalf("first source stops = %v, want [0.26]", stops)
	}
	if starts := h.sources[1].starts; len(starts) != 1 || !approxEqual(starts[0], 0.06) {
		t.Fatalf("retriggered source starts = %v, want [0.06]", starts)
	}
	if n := env.countEvents(EventNote); n != 2 {
		t.Fatalf("note events = %d, want 2", n)
	}
}

func TestRetriggerVolume(t *testing.T) {
	tests := []struct {
		v      float64
		change uint8
		want   float64
	}{
		{32, 0, 32},
		{32, 1, 31},
		{32, 5, 16},
		{32, 6, 32 * 2.0 / 3},
		{32, 7, 16},
		{32, 8, 32},
		{32, 9, 33},
		{32, 0xD, 48},
		{32, 0xE, 48},
		{40, 0xF, 64},
		{4, 5, 0},
	}
	for _, test := range tests {
		if have := retriggerVolume(test.v, test.change); !approxEqual(have, test.want) {
			t.Fatalf("retriggerVolume(%v, %d) = %v, want %v", test.v, test.change, have, test.want)
		}
	}
}

func TestEnvelopeLoop(t *testing.T) {
	m := newTestModule(1)
	env := newTestEnv(t, m)
	env.player.PlayNote(Note{Note: 49, Instrument: 4}, 0)

	if n := env.sched.Pending(); n != 1 {
		t.Fatalf("pending timers = %d, want 1", n)
	}
	env.advance(1)
	if n := env.sched.Pending(); n != 1 {
		t.Fatalf("pending timers after the loops = %d, want 1", n)
	}

	envelope := &env.host.gains[2].gain
	if n := envelope.count("set"); n < 6 {
		t.Fatalf("envelope restarts = %d, want at least 6", n)
	}

	env.player.StopAllChannels()
	if n := env.sched.Pending(); n != 0 {
		t.Fatalf("pending timers after the cut = %d, want 0", n)
	}
}

func TestEnvelopeValueAt(t *testing.T) {
	e := &Envelope{
		Points: []EnvelopePoint{{0, 0}, {10, 40}, {10, 20}, {20, 60}},
	}
	tests := []struct {
		tick int
		want float64
	}{
		{0, 0},
		{5, 20},
		{10, 40},
		{15, 40},
		{30, 60},
	}
	for _, test := range tests {
		if have := e.valueAt(test.tick); have != test.want {
			t.Fatalf("valueAt(%d) = %v, want %v", test.tick, have, test.want)
		}
	}
}

func TestSetEnvelopePosition(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 2, EffectType: 0x15, EffectParam: 15}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	// Tick 15 is past the sustain point: the envelope holds
	// the interpolated value.
	envelope := &env.host.gains[2].gain
	if e := envelope.last(); e.kind != "set" || e.value != 0.25 {
		t.Fatalf("envelope last event = %+v, want set 0.25", e)
	}
}

func TestPanning(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0x8, EffectParam: 0xFF}},
		{{Volume: 0xD2}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	c := env.player.Channel(0)
	pan := &env.host.panners[0].pan
	if have := pan.value; !approxEqual(have, 127.0/128) {
		t.Fatalf("pan = %v, want %v", have, 127.0/128)
	}

	env.advance(0.13)
	if have := c.Panning(); have != 0xFF-12 {
		t.Fatalf("Panning() after a slide = %v, want %v", have, 0xFF-12)
	}
	if e := pan.last(); e.kind != "linear" || !approxEqual(e.time, 0.24) {
		t.Fatalf("pan last event = %+v, want a ramp until 0.24", e)
	}
}

func TestTremor(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0x1D, EffectParam: 0x11}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	g := &env.host.gains[2].gain
	var values []float64
	for _, e := range g.events {
		values = append(values, e.value)
	}
	// Two ticks on, two ticks off, then restored at the row end.
	want := []float64{1, 1, 0, 0, 1, 1, 1}
	if len(values) != len(want) {
		t.Fatalf("tremor values = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("tremor values = %v, want %v", values, want)
		}
	}
}

func TestMissingInstrument(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 9}},
		{{Note: 49}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	if len(env.host.sources) != 0 {
		t.Fatalf("sources = %d, want 0", len(env.host.sources))
	}
	if c := env.player.Channel(0); c.Phase() != PhaseOff {
		t.Fatalf("phase = %v, want off", c.Phase())
	}
}

func TestTonePortamentoWithoutNote(t *testing.T) {
	tests := []struct {
		name string
		note Note
	}{
		{"effect 3", Note{Note: 49, Instrument: 1, EffectType: 0x3, EffectParam: 0x10}},
		{"effect 5", Note{Note: 49, Instrument: 1, EffectType: 0x5, EffectParam: 0x01}},
		{"volume column", Note{Note: 49, Instrument: 1, Volume: 0xF4}},
	}
	for _, test := range tests {
		m := newTestModule(1, []Row{{test.note}})
		env := newTestEnv(t, m)
		env.player.PlayPattern(0, 0, nil, false)

		if phase := env.player.Channel(0).Phase(); phase != PhaseOff {
			t.Fatalf("%s: phase = %v, want off", test.name, phase)
		}
		if n := len(env.host.sources); n != 0 {
			t.Fatalf("%s: sources = %d, want 0", test.name, n)
		}
	}
}

func TestTonePortamentoIgnoresNoteOff(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1}},
		{{Note: NoteOff, Volume: 0xF4}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)
	env.advance(0.13)

	if phase := env.player.Channel(0).Phase(); phase != PhaseSustain {
		t.Fatalf("phase = %v, want sustain", phase)
	}
	if stops := env.host.sources[0].stops; len(stops) != 0 {
		t.Fatalf("source stops = %v, want none", stops)
	}
}

func TestPatternDelayPlaysNoNote(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 1, EffectType: 0xE, EffectParam: 0xE2}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	if phase := env.player.Channel(0).Phase(); phase != PhaseOff {
		t.Fatalf("phase = %v, want off", phase)
	}
	if n := len(env.host.sources); n != 0 {
		t.Fatalf("sources = %d, want 0", n)
	}
	if n := env.countEvents(EventNote); n != 0 {
		t.Fatalf("note events = %d, want 0", n)
	}
}

func TestVibratoDepthKeepsAutovibratoRate(t *testing.T) {
	m := newTestModule(1, []Row{
		{{Note: 49, Instrument: 3, EffectType: 0x4, EffectParam: 0x06}},
	})
	env := newTestEnv(t, m)
	env.player.PlayPattern(0, 0, nil, false)

	h := env.host
	if len(h.oscs) != 1 {
		t.Fatalf("oscillators = %d, want 1", len(h.oscs))
	}
	osc := h.oscs[0]
	if len(osc.stops) != 0 {
		t.Fatalf("the autovibrato was stopped at %v", osc.stops)
	}
	if have := osc.frequency.value; !approxEqual(have, 1.5625) {
		t.Fatalf("vibrato frequency = %v, want the autovibrato 1.5625", have)
	}
	amp := osc.outputs[0].(*fakeGain)
	if have := amp.gain.value; !approxEqual(have, 37.5) {
		t.Fatalf("vibrato amplitude = %v, want 37.5 cents", have)
	}
}
