package xmseq

// The player does not produce any audio on its own.
// It builds a graph of nodes and schedules their parameter changes
// against the host clock; the host does the mixing and resampling.
//
// All times are in seconds of the host clock (see AudioHost.CurrentTime).
// The audiograph package provides a software implementation of these interfaces.

// AudioParam is a node parameter with scheduled automation.
type AudioParam interface {
	// Value returns the value at the current host time.
	Value() float64

	SetValueAtTime(v, t float64)
	LinearRampToValueAtTime(v, t float64)

	// ExponentialRampToValueAtTime requires both the previous value and v to be positive.
	ExponentialRampToValueAtTime(v, t float64)

	// SetTargetAtTime starts an exponential approach to v at time t.
	SetTargetAtTime(v, t, timeConstant float64)

	// CancelScheduledValues removes all events scheduled at t or later.
	CancelScheduledValues(t float64)
}

type AudioNode interface {
	Connect(dst AudioNode)

	// ConnectParam makes this node output modulate the param value.
	ConnectParam(dst AudioParam)

	// Disconnect detaches the node from all of its outputs.
	Disconnect()
}

type GainNode interface {
	AudioNode
	Gain() AudioParam
}

type PannerNode interface {
	AudioNode

	// Pan is in [-1, 1] range: -1 is left, 1 is right.
	Pan() AudioParam
}

type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
)

type OscillatorNode interface {
	AudioNode
	Frequency() AudioParam
	SetWaveform(w Waveform)
	Start(when float64)
	Stop(when float64)
}

type BufferSourceNode interface {
	AudioNode

	PlaybackRate() AudioParam

	// Detune is measured in cents.
	Detune() AudioParam

	// SetLoop enables a sample loop; start and end are in seconds of the buffer.
	SetLoop(start, end float64, pingPong bool)

	// Start schedules the playback from the offset (in seconds of the buffer).
	Start(when, offset float64)
	Stop(when float64)
}

type AudioHost interface {
	CurrentTime() float64

	Destination() AudioNode

	NewGain() GainNode
	NewPanner() PannerNode
	NewOscillator() OscillatorNode
	NewBufferSource(s *Sample) BufferSourceNode
}

// AudioEnv is a set of capabilities the player needs to run.
type AudioEnv struct {
	Host AudioHost

	// Scheduler runs the delayed callbacks against the Host clock.
	Scheduler *Scheduler
}
