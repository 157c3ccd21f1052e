package audiograph

import (
	"math"

	"github.com/quasilyte/xmseq"
)

// block is a single quantum of node output.
// channels is 0 for a silent block, 1 for mono and 2 for stereo.
type block struct {
	channels int
	data     [2][quantumFrames]float32
}

func (b *block) reset(channels int) {
	b.channels = channels
	for ch := 0; ch < channels; ch++ {
		b.data[ch] = [quantumFrames]float32{}
	}
}

// processor is implemented by every concrete node type.
type processor interface {
	process(n *node, out *block)
}

// node is a graph vertex shared by all node types.
type node struct {
	ctx  *Context
	impl processor

	inputs  []*node
	outputs []*node
	params  []*Param

	// persistent nodes are never detached automatically.
	persistent bool

	// finished is set by the sources that will never produce anything again.
	finished bool

	quantum int64
	out     block
}

type graphNode interface {
	graphNode() *node
}

func (n *node) graphNode() *node { return n }

// pull returns the node output for the current quantum.
// The output is computed once per quantum.
func (n *node) pull() *block {
	if n.quantum == n.ctx.quantum {
		return &n.out
	}
	n.quantum = n.ctx.quantum
	n.out.channels = 0
	n.impl.process(n, &n.out)
	return &n.out
}

// mixInputs sums all inputs into out; mono inputs are up-mixed if needed.
func (n *node) mixInputs(out *block) {
	channels := 0
	for _, in := range n.inputs {
		b := in.pull()
		if b.channels > channels {
			channels = b.channels
		}
	}
	out.reset(channels)
	if channels == 0 {
		return
	}
	for _, in := range n.inputs {
		b := &in.out
		switch {
		case b.channels == 0:
			continue
		case b.channels == channels:
			for ch := 0; ch < channels; ch++ {
				addSamples(&out.data[ch], &b.data[ch])
			}
		default:
			// Mono to stereo.
			addSamples(&out.data[0], &b.data[0])
			addSamples(&out.data[1], &b.data[0])
		}
	}
}

func addSamples(dst, src *[quantumFrames]float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func (n *node) Connect(dst xmseq.AudioNode) {
	d := dst.(graphNode).graphNode()
	d.inputs = append(d.inputs, n)
	n.outputs = append(n.outputs, d)
	if d == &n.ctx.dest.node {
		n.persistent = true
	}
}

func (n *node) ConnectParam(dst xmseq.AudioParam) {
	p := dst.(*Param)
	p.modulators = append(p.modulators, n)
	n.params = append(n.params, p)
}

func (n *node) Disconnect() {
	for _, out := range n.outputs {
		out.inputs = removeNode(out.inputs, n)
	}
	for _, p := range n.params {
		p.removeModulator(n)
	}
	n.outputs = nil
	n.params = nil
}

// detach disconnects the node and then the nodes that are left
// without inputs because of that.
func (n *node) detach() {
	outputs := n.outputs
	n.Disconnect()
	for _, out := range outputs {
		if len(out.inputs) == 0 && !out.persistent {
			out.detach()
		}
	}
}

func removeNode(list []*node, n *node) []*node {
	for i, x := range list {
		if x == n {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			return list[:len(list)-1]
		}
	}
	return list
}

type destinationProcessor struct{}

func (destinationProcessor) process(n *node, out *block) {
	n.mixInputs(out)
}

// GainNode multiplies its input by the gain param.
type GainNode struct {
	node
	gain *Param
}

func (g *GainNode) Gain() xmseq.AudioParam { return g.gain }

func (g *GainNode) process(n *node, out *block) {
	n.mixInputs(out)
	if out.channels == 0 {
		return
	}
	var gains [quantumFrames]float32
	t0, t1 := n.ctx.quantumTime()
	g.gain.aValues(t0, t1, &gains)
	for ch := 0; ch < out.channels; ch++ {
		data := &out.data[ch]
		for i := range data {
			data[i] *= gains[i]
		}
	}
}

// PannerNode is a stereo panner with the equal-power panning law.
// Its output is always stereo.
type PannerNode struct {
	node
	pan *Param
}

func (p *PannerNode) Pan() xmseq.AudioParam { return p.pan }

func (p *PannerNode) process(n *node, out *block) {
	var in block
	n.mixInputs(&in)
	if in.channels == 0 {
		return
	}
	out.reset(2)

	var pans [quantumFrames]float32
	t0, t1 := n.ctx.quantumTime()
	p.pan.aValues(t0, t1, &pans)

	for i := 0; i < quantumFrames; i++ {
		pan := math.Max(-1, math.Min(1, float64(pans[i])))
		if in.channels == 1 {
			x := (pan + 1) / 2
			v := in.data[0][i]
			out.data[0][i] = v * float32(math.Cos(x*math.Pi/2))
			out.data[1][i] = v * float32(math.Sin(x*math.Pi/2))
			continue
		}
		l := in.data[0][i]
		r := in.data[1][i]
		if pan <= 0 {
			x := pan + 1
			out.data[0][i] = l + r*float32(math.Cos(x*math.Pi/2))
			out.data[1][i] = r * float32(math.Sin(x*math.Pi/2))
		} else {
			x := pan
			out.data[0][i] = l * float32(math.Cos(x*math.Pi/2))
			out.data[1][i] = r + l*float32(math.Sin(x*math.Pi/2))
		}
	}
}

// scheduledSource implements the Start/Stop times of the source nodes.
type scheduledSource struct {
	started   bool
	startTime float64
	stopTime  float64
}

func (s *scheduledSource) start(when float64) bool {
	if s.started {
		return false
	}
	s.started = true
	s.startTime = when
	if s.stopTime == 0 {
		s.stopTime = math.Inf(1)
	}
	return true
}

// checkFinished marks the node finished if it's stopped
// by the end of the current quantum.
func (s *scheduledSource) checkFinished(n *node, first int64) {
	if n.finished {
		return
	}
	if n.ctx.timeToFrame(s.stopTime) <= first+quantumFrames {
		n.finished = true
		n.ctx.markFinished(n)
	}
}

func (s *scheduledSource) stop(when float64) {
	if !s.started {
		return
	}
	if when < s.stopTime {
		s.stopTime = when
	}
}

// OscillatorNode is a periodic mono signal generator.
type OscillatorNode struct {
	node
	scheduledSource

	frequency *Param
	waveform  xmseq.Waveform

	phase float64
}

func (o *OscillatorNode) Frequency() xmseq.AudioParam { return o.frequency }

func (o *OscillatorNode) SetWaveform(w xmseq.Waveform) { o.waveform = w }

func (o *OscillatorNode) Start(when float64) { o.start(when) }

func (o *OscillatorNode) Stop(when float64) { o.stop(when) }

func (o *OscillatorNode) sample() float32 {
	switch o.waveform {
	case xmseq.WaveSquare:
		if o.phase < 0.5 {
			return 1
		}
		return -1
	case xmseq.WaveSawtooth:
		// Starts at zero and rises, just like the sine.
		x := o.phase + 0.5
		x -= math.Floor(x)
		return float32(2*x - 1)
	default:
		return float32(math.Sin(2 * math.Pi * o.phase))
	}
}

func (o *OscillatorNode) process(n *node, out *block) {
	if !o.started {
		return
	}
	c := n.ctx
	first := c.quantumFrame()
	startFrame := c.timeToFrame(o.startTime)
	stopFrame := c.timeToFrame(o.stopTime)
	if first >= stopFrame {
		o.checkFinished(n, first)
		return
	}
	if first+quantumFrames <= startFrame {
		return
	}

	t0, _ := c.quantumTime()
	step := o.frequency.kValue(t0) / c.sampleRate

	out.reset(1)
	data := &out.data[0]
	for i := range data {
		f := first + int64(i)
		if f < startFrame || f >= stopFrame {
			continue
		}
		data[i] = o.sample()
		o.phase += step
		o.phase -= math.Floor(o.phase)
	}

	o.checkFinished(n, first)
}

// BufferSourceNode plays a mono sample buffer.
type BufferSourceNode struct {
	node
	scheduledSource

	data []float32

	playbackRate *Param
	detune       *Param

	loop      bool
	pingPong  bool
	loopStart float64
	loopEnd   float64

	offset    float64
	playing   bool
	pos       float64
	backwards bool
}

func (s *BufferSourceNode) PlaybackRate() xmseq.AudioParam { return s.playbackRate }

func (s *BufferSourceNode) Detune() xmseq.AudioParam { return s.detune }

func (s *BufferSourceNode) SetLoop(start, end float64, pingPong bool) {
	s.loopStart = start * xmseq.SampleRate
	s.loopEnd = math.Min(end*xmseq.SampleRate, float64(len(s.data)))
	s.loop = s.loopEnd-s.loopStart >= 1
	s.pingPong = pingPong
}

func (s *BufferSourceNode) Start(when, offset float64) {
	if s.start(when) {
		s.offset = offset
	}
}

func (s *BufferSourceNode) Stop(when float64) { s.stop(when) }

// at returns the linearly interpolated sample value at the buffer position.
func (s *BufferSourceNode) at(pos float64) float32 {
	i := int(pos)
	if i < 0 || i >= len(s.data) {
		return 0
	}
	j := i + 1
	if s.loop && !s.pingPong && float64(j) >= s.loopEnd {
		j = int(s.loopStart)
	}
	if j >= len(s.data) {
		j = len(s.data) - 1
	}
	k := float32(pos - float64(i))
	return s.data[i]*(1-k) + s.data[j]*k
}

func (s *BufferSourceNode) advance(step float64) bool {
	if s.backwards {
		s.pos -= step
	} else {
		s.pos += step
	}

	if !s.loop {
		return s.pos < float64(len(s.data))
	}

	loopLength := s.loopEnd - s.loopStart
	if !s.pingPong {
		for s.pos >= s.loopEnd {
			s.pos -= loopLength
		}
		return true
	}

	// The ping-pong loop reflects at the last loop frame.
	last := s.loopEnd - 1
	for i := 0; i < 4; i++ {
		switch {
		case !s.backwards && s.pos > last:
			s.pos = 2*last - s.pos
			s.backwards = true
		case s.backwards && s.pos < s.loopStart:
			s.pos = 2*s.loopStart - s.pos
			s.backwards = false
		default:
			return true
		}
	}
	s.pos = s.loopStart
	return true
}

func (s *BufferSourceNode) process(n *node, out *block) {
	if !s.started {
		return
	}
	c := n.ctx
	first := c.quantumFrame()
	startFrame := c.timeToFrame(s.startTime)
	stopFrame := c.timeToFrame(s.stopTime)
	if first >= stopFrame {
		s.checkFinished(n, first)
		return
	}
	if first+quantumFrames <= startFrame {
		return
	}

	t0, _ := c.quantumTime()
	rate := s.playbackRate.kValue(t0) * math.Pow(2, s.detune.kValue(t0)/1200)
	step := rate * xmseq.SampleRate / c.sampleRate

	out.reset(1)
	data := &out.data[0]
	for i := range data {
		f := first + int64(i)
		if f < startFrame {
			continue
		}
		if f >= stopFrame {
			break
		}
		if !s.playing {
			s.playing = true
			s.pos = s.offset * xmseq.SampleRate
			if s.pos >= float64(len(s.data)) {
				s.stopTime = c.frameToTime(f)
				break
			}
		}
		data[i] = s.at(s.pos)
		if !s.advance(step) {
			s.stopTime = c.frameToTime(f + 1)
			break
		}
	}

	s.checkFinished(n, first)
}
