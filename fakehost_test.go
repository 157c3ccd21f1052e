package xmseq

import (
	"math"
	"testing"
)

// fakeHost records the graph construction and the param automation calls.
type fakeHost struct {
	now float64

	dest    *fakeNode
	gains   []*fakeGain
	panners []*fakePanner
	oscs    []*fakeOscillator
	sources []*fakeSource
}

type fakeParamEvent struct {
	kind  string
	value float64
	time  float64
}

type fakeParam struct {
	value  float64
	events []fakeParamEvent
}

func (p *fakeParam) Value() float64 { return p.value }

func (p *fakeParam) SetValueAtTime(v, t float64) {
	p.value = v
	p.events = append(p.events, fakeParamEvent{"set", v, t})
}

func (p *fakeParam) LinearRampToValueAtTime(v, t float64) {
	p.value = v
	p.events = append(p.events, fakeParamEvent{"linear", v, t})
}

func (p *fakeParam) ExponentialRampToValueAtTime(v, t float64) {
	p.value = v
	p.events = append(p.events, fakeParamEvent{"exponential", v, t})
}

func (p *fakeParam) SetTargetAtTime(v, t, timeConstant float64) {
	p.events = append(p.events, fakeParamEvent{"target", v, t})
}

func (p *fakeParam) CancelScheduledValues(t float64) {
	p.events = append(p.events, fakeParamEvent{"cancel", 0, t})
}

func (p *fakeParam) last() fakeParamEvent {
	if len(p.events) == 0 {
		return fakeParamEvent{}
	}
	return p.events[len(p.events)-1]
}

func (p *fakeParam) count(kind string) int {
	n := 0
	for _, e := range p.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type fakeNode struct {
	outputs []AudioNode
	params  []AudioParam
}

func (n *fakeNode) Connect(dst AudioNode)       { n.outputs = append(n.outputs, dst) }
func (n *fakeNode) ConnectParam(dst AudioParam) { n.params = append(n.params, dst) }
func (n *fakeNode) Disconnect()                 { n.outputs = nil; n.params = nil }

type fakeGain struct {
	fakeNode
	gain fakeParam
}

func (g *fakeGain) Gain() AudioParam { return &g.gain }

type fakePanner struct {
	fakeNode
	pan fakeParam
}

func (p *fakePanner) Pan() AudioParam { return &p.pan }

type fakeOscillator struct {
	fakeNode
	frequency fakeParam
	waveform  Waveform
	starts    []float64
	stops     []float64
}

func (o *fakeOscillator) Frequency() AudioParam  { return &o.frequency }
func (o *fakeOscillator) SetWaveform(w Waveform) { o.waveform = w }
func (o *fakeOscillator) Start(when float64)     { o.starts = append(o.starts, when) }
func (o *fakeOscillator) Stop(when float64)      { o.stops = append(o.stops, when) }

type fakeSource struct {
	fakeNode
	sample       *Sample
	playbackRate fakeParam
	detune       fakeParam
	loop         bool
	pingPong     bool
	starts       []float64
	offsets      []float64
	stops        []float64
}

func (s *fakeSource) PlaybackRate() AudioParam { return &s.playbackRate }
func (s *fakeSource) Detune() AudioParam       { return &s.detune }

func (s *fakeSource) SetLoop(start, end float64, pingPong bool) {
	s.loop = true
	s.pingPong = pingPong
}

func (s *fakeSource) Start(when, offset float64) {
	s.starts = append(s.starts, when)
	s.offsets = append(s.offsets, offset)
}

func (s *fakeSource) Stop(when float64) { s.stops = append(s.stops, when) }

func newFakeHost() *fakeHost {
	return &fakeHost{dest: &fakeNode{}}
}

func (h *fakeHost) CurrentTime() float64   { return h.now }
func (h *fakeHost) Destination() AudioNode { return h.dest }

func (h *fakeHost) NewGain() GainNode {
	g := &fakeGain{gain: fakeParam{value: 1}}
	h.gains = append(h.gains, g)
	return g
}

func (h *fakeHost) NewPanner() PannerNode {
	p := &fakePanner{}
	h.panners = append(h.panners, p)
	return p
}

func (h *fakeHost) NewOscillator() OscillatorNode {
	o := &fakeOscillator{}
	h.oscs = append(h.oscs, o)
	return o
}

func (h *fakeHost) NewBufferSource(s *Sample) BufferSourceNode {
	src := &fakeSource{sample: s, playbackRate: fakeParam{value: 1}}
	h.sources = append(h.sources, src)
	return src
}

// advance runs the scheduler up to the specified time in small steps.
// The callbacks are executed before the clock reaches their deadlines,
// just like an audio host render hook does it.
func (h *fakeHost) advance(s *Scheduler, until float64) {
	const step = 0.005
	for h.now < until {
		next := math.Min(h.now+step, until)
		s.Advance(next)
		h.now = next
	}
}

type testEnv struct {
	host   *fakeHost
	sched  *Scheduler
	player *Player
	events []PlayerEvent
}

func newTestEnv(t *testing.T, m *Module) *testEnv {
	t.Helper()
	env := &testEnv{host: newFakeHost()}
	env.sched = NewScheduler(env.host, SchedulerConfig{})
	env.player = NewPlayer(m, AudioEnv{Host: env.host, Scheduler: env.sched}, PlayerConfig{
		EventHandler: func(e PlayerEvent) {
			env.events = append(env.events, e)
		},
	})
	return env
}

func (env *testEnv) advance(until float64) {
	env.host.advance(env.sched, until)
}

func (env *testEnv) countEvents(kind PlayerEventKind) int {
	n := 0
	for _, e := range env.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (env *testEnv) rowEvents() [][3]int {
	var rows [][3]int
	for _, e := range env.events {
		if e.Kind != EventRow {
			continue
		}
		pos, pat, row := e.RowEventData()
		rows = append(rows, [3]int{pos, pat, row})
	}
	return rows
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6
}

func newTestSample() Sample {
	data := make([]int16, 4000)
	for i := range data {
		data[i] = int16(i%64) - 32
	}
	return Sample{
		Name:           "test",
		Data:           data,
		BytesPerSample: 1,
		Volume:         0x40,
		Panning:        0x80,
	}
}

// newTestModule returns a module with one pattern per rows argument.
//
// Instrument 1 is a plain sample.
// Instrument 2 has a volume envelope with a sustain point and a fadeout.
// Instrument 3 has an autovibrato.
// Instrument 4 has a looped volume envelope.
func newTestModule(numChannels int, patterns ...[]Row) *Module {
	m := &Module{
		Name:         "test",
		NumChannels:  numChannels,
		DefaultTempo: 6,
		DefaultBPM:   125,
	}
	for i, rows := range patterns {
		for j := range rows {
			if len(rows[j]) < numChannels {
				row := make(Row, numChannels)
				copy(row, rows[j])
				rows[j] = row
			}
		}
		m.Patterns = append(m.Patterns, Pattern{NumChannels: numChannels, Rows: rows})
		m.PatternOrder = append(m.PatternOrder, i)
	}

	m.Instruments = []Instrument{
		{
			Name:    "plain",
			Samples: []Sample{newTestSample()},
		},
		{
			Name:          "enveloped",
			VolumeFadeout: 0x400,
			VolumeEnvelope: &Envelope{
				Points:       []EnvelopePoint{{0, 64}, {10, 32}, {20, 0}},
				HasSustain:   true,
				SustainPoint: 1,
			},
			Samples: []Sample{newTestSample()},
		},
		{
			Name:         "vibrato",
			VibratoType:  0,
			VibratoDepth: 4,
			VibratoRate:  8,
			Samples:      []Sample{newTestSample()},
		},
		{
			Name: "looped",
			VolumeEnvelope: &Envelope{
				Points:         []EnvelopePoint{{0, 64}, {4, 32}, {8, 64}},
				HasLoop:        true,
				LoopStartPoint: 0,
				LoopEndPoint:   2,
			},
			Samples: []Sample{newTestSample()},
		},
	}

	return m
}

func emptyRows(n int) []Row {
	return make([]Row, n)
}
