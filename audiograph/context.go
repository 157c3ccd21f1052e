// Package audiograph is a software implementation of the xmseq audio host.
//
// It renders a graph of gain, panner, oscillator and sample buffer nodes
// into 16-bit stereo PCM, so it can be used as an io.Reader for
// the Ebitengine audio player or as an offline renderer.
package audiograph

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/quasilyte/xmseq"
)

// quantumFrames is the number of frames rendered at once.
// The k-rate params are evaluated once per quantum.
const quantumFrames = 128

type Config struct {
	// SampleRate is the output sample rate.
	// A zero value means 44100.
	SampleRate int

	// Volume scales the output.
	// A zero value means 1.
	Volume float64
}

var _ xmseq.AudioHost = (*Context)(nil)

// Context renders the audio graph.
//
// The graph construction and the param automation calls are not thread-safe:
// they must be executed with the context lock held (see Lock and Do).
// The render hook is called with the lock held as well.
// CurrentTime can be called without the lock.
type Context struct {
	mu sync.Mutex

	config     Config
	sampleRate float64
	volume     float64

	// frame is the number of rendered frames.
	frame atomic.Int64

	quantum int64
	dest    *Destination

	finished []*node

	renderHook func(from, to float64)

	// pending holds the rendered quantum frames that were not read yet.
	pending    [2][quantumFrames]float32
	pendingPos int
}

// Destination is the graph output node.
type Destination struct {
	node
}

func NewContext(config Config) *Context {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.Volume == 0 {
		config.Volume = 1
	}
	c := &Context{
		config:     config,
		sampleRate: float64(config.SampleRate),
		volume:     config.Volume,
		pendingPos: quantumFrames,
	}
	c.dest = &Destination{}
	c.initNode(&c.dest.node, destinationProcessor{})
	c.dest.persistent = true
	return c
}

func (c *Context) initNode(n *node, impl processor) {
	n.ctx = c
	n.impl = impl
	n.quantum = -1
}

func (c *Context) SampleRate() int { return c.config.SampleRate }

// CurrentTime returns the time of the next frame to be rendered, in seconds.
func (c *Context) CurrentTime() float64 {
	return c.frameToTime(c.frame.Load())
}

// SetVolume adjusts the output volume scaling.
// The value is clamped in [0, 1].
func (c *Context) SetVolume(v float64) {
	c.mu.Lock()
	c.volume = math.Max(0, math.Min(1, v))
	c.mu.Unlock()
}

// SetRenderHook installs a function that is called before every quantum
// is rendered with its time bounds. This is where the scheduler
// of an offline renderer should be advanced.
func (c *Context) SetRenderHook(hook func(from, to float64)) {
	c.mu.Lock()
	c.renderHook = hook
	c.mu.Unlock()
}

func (c *Context) Lock() { c.mu.Lock() }

func (c *Context) Unlock() { c.mu.Unlock() }

// Do executes fn with the context lock held.
func (c *Context) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (c *Context) Destination() xmseq.AudioNode { return c.dest }

func (c *Context) NewGain() xmseq.GainNode {
	g := &GainNode{}
	c.initNode(&g.node, g)
	g.gain = newParam(c, 1)
	return g
}

func (c *Context) NewPanner() xmseq.PannerNode {
	p := &PannerNode{}
	c.initNode(&p.node, p)
	p.pan = newParam(c, 0)
	return p
}

func (c *Context) NewOscillator() xmseq.OscillatorNode {
	o := &OscillatorNode{}
	c.initNode(&o.node, o)
	o.frequency = newParam(c, 440)
	return o
}

func (c *Context) NewBufferSource(s *xmseq.Sample) xmseq.BufferSourceNode {
	b := &BufferSourceNode{data: s.Float32()}
	c.initNode(&b.node, b)
	b.playbackRate = newParam(c, 1)
	b.detune = newParam(c, 0)
	return b
}

func (c *Context) frameToTime(f int64) float64 {
	return float64(f) / c.sampleRate
}

func (c *Context) timeToFrame(t float64) int64 {
	f := math.Round(t * c.sampleRate)
	if f >= math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	if f <= math.MinInt64/2 {
		return math.MinInt64 / 2
	}
	return int64(f)
}

func (c *Context) quantumFrame() int64 {
	return c.frame.Load()
}

func (c *Context) quantumTime() (t0, t1 float64) {
	f := c.frame.Load()
	return c.frameToTime(f), c.frameToTime(f + quantumFrames)
}

func (c *Context) markFinished(n *node) {
	c.finished = append(c.finished, n)
}

// renderQuantum renders the next quantum into dst.
// It must be called with the lock held.
func (c *Context) renderQuantum(dst *[2][quantumFrames]float32) {
	if c.renderHook != nil {
		t0, t1 := c.quantumTime()
		c.renderHook(t0, t1)
	}

	c.quantum++
	b := c.dest.pull()
	switch b.channels {
	case 0:
		dst[0] = [quantumFrames]float32{}
		dst[1] = [quantumFrames]float32{}
	case 1:
		dst[0] = b.data[0]
		dst[1] = b.data[0]
	default:
		dst[0] = b.data[0]
		dst[1] = b.data[1]
	}
	if c.volume != 1 {
		v := float32(c.volume)
		for ch := range dst {
			for i := range dst[ch] {
				dst[ch][i] *= v
			}
		}
	}

	c.frame.Add(quantumFrames)

	for _, n := range c.finished {
		n.detach()
	}
	for i := range c.finished {
		c.finished[i] = nil
	}
	c.finished = c.finished[:0]
}

// RenderFloat32 renders len(dst)/2 interleaved stereo frames.
func (c *Context) RenderFloat32(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		if c.pendingPos == quantumFrames {
			c.mu.Lock()
			c.renderQuantum(&c.pending)
			c.mu.Unlock()
			c.pendingPos = 0
		}
		dst[i] = c.pending[0][c.pendingPos]
		dst[i+1] = c.pending[1][c.pendingPos]
		c.pendingPos++
	}
}

// Read puts the next PCM bytes into provided slice.
//
// It produces 16-bit little endian stereo PCM data; this is what
// Ebitengine audio package expects. The stream never ends,
// so Read never returns io.EOF.
func (c *Context) Read(b []byte) (int, error) {
	written := 0
	for len(b)-written >= 4 {
		if c.pendingPos == quantumFrames {
			c.mu.Lock()
			c.renderQuantum(&c.pending)
			c.mu.Unlock()
			c.pendingPos = 0
		}
		left := toPCM(c.pending[0][c.pendingPos])
		right := toPCM(c.pending[1][c.pendingPos])
		putPCM(b[written:], uint16(left), uint16(right))
		c.pendingPos++
		written += 4
	}
	return written, nil
}

func toPCM(v float32) int16 {
	if v >= 1 {
		return math.MaxInt16
	}
	if v <= -1 {
		return -math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}

func putPCM(b []byte, left, right uint16) {
	_ = b[3] // Early bound check
	b[0] = byte(left)
	b[1] = byte(left >> 8)
	b[2] = byte(right)
	b[3] = byte(right >> 8)
}
