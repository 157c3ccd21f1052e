package audiograph

import (
	"math"
	"sort"
)

type paramEventKind uint8

const (
	eventSet paramEventKind = iota
	eventLinear
	eventExponential
	eventTarget
)

type paramEvent struct {
	kind         paramEventKind
	time         float64
	value        float64
	timeConstant float64
}

// Param is a node parameter with the scheduled automation.
//
// The automation follows the Web Audio AudioParam rules:
// a ramp starts at the previous event, a target approach
// lasts until the next event. Nodes connected to the param
// via ConnectParam add their output to the automation value.
type Param struct {
	ctx *Context

	// The value the events start from.
	baseTime  float64
	baseValue float64

	events     []paramEvent
	modulators []*node
}

func newParam(ctx *Context, v float64) *Param {
	return &Param{ctx: ctx, baseValue: v}
}

// Value returns the automation value at the current context time.
// The modulators are not included.
func (p *Param) Value() float64 {
	return p.valueAt(p.ctx.CurrentTime())
}

func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventSet, time: t, value: v})
}

func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventLinear, time: t, value: v})
}

func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(paramEvent{kind: eventExponential, time: t, value: v})
}

func (p *Param) SetTargetAtTime(v, t, timeConstant float64) {
	if timeConstant <= 0 {
		p.SetValueAtTime(v, t)
		return
	}
	p.insert(paramEvent{kind: eventTarget, time: t, value: v, timeConstant: timeConstant})
}

// CancelScheduledValues removes all events scheduled at t or later.
// A ramp that is in progress at t is cut at its current value,
// so the param holds that value instead of jumping back.
func (p *Param) CancelScheduledValues(t float64) {
	i := sort.Search(len(p.events), func(i int) bool {
		return p.events[i].time >= t
	})
	if i == len(p.events) {
		return
	}
	e := p.events[i]
	if e.kind == eventLinear || e.kind == eventExponential {
		v := p.valueAt(t)
		p.events = append(p.events[:i], paramEvent{kind: e.kind, time: t, value: v})
		return
	}
	p.events = p.events[:i]
}

// insert keeps the events sorted by time;
// the events with equal times keep their insertion order.
func (p *Param) insert(e paramEvent) {
	i := sort.Search(len(p.events), func(i int) bool {
		return p.events[i].time > e.time
	})
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

func targetValue(e *paramEvent, from, t float64) float64 {
	return e.value + (from-e.value)*math.Exp(-(t-e.time)/e.timeConstant)
}

func (p *Param) valueAt(t float64) float64 {
	prevTime := p.baseTime
	prevValue := p.baseValue
	for i := range p.events {
		e := &p.events[i]
		if e.time > t {
			return interpolate(e, prevTime, prevValue, t)
		}
		if e.kind == eventTarget {
			end := t
			if i+1 < len(p.events) && p.events[i+1].time <= t {
				end = p.events[i+1].time
			}
			prevValue = targetValue(e, prevValue, end)
			prevTime = end
			continue
		}
		prevTime = e.time
		prevValue = e.value
	}
	return prevValue
}

func interpolate(e *paramEvent, prevTime, prevValue, t float64) float64 {
	k := (t - prevTime) / (e.time - prevTime)
	if k < 0 {
		k = 0
	}
	switch e.kind {
	case eventLinear:
		return prevValue + (e.value-prevValue)*k
	case eventExponential:
		if prevValue*e.value <= 0 {
			return prevValue
		}
		return prevValue * math.Pow(e.value/prevValue, k)
	default:
		return prevValue
	}
}

// collapse folds the events that are fully in the past into the base value.
func (p *Param) collapse(t float64) {
	n := 0
	for n < len(p.events) {
		e := &p.events[n]
		if e.time > t {
			break
		}
		if e.kind == eventTarget {
			if n+1 == len(p.events) || p.events[n+1].time > t {
				break
			}
			next := p.events[n+1].time
			p.baseValue = targetValue(e, p.baseValue, next)
			p.baseTime = next
			n++
			continue
		}
		p.baseTime = e.time
		p.baseValue = e.value
		n++
	}
	if n != 0 {
		p.events = append(p.events[:0], p.events[n:]...)
	}
}

// kValue returns the param value for the whole quantum starting at t.
func (p *Param) kValue(t float64) float64 {
	p.collapse(t)
	v := p.valueAt(t)
	for _, m := range p.modulators {
		b := m.pull()
		if b.channels != 0 {
			v += float64(b.data[0][0])
		}
	}
	return v
}

// aValues computes the per-frame param values for the quantum [t0, t1).
// The automation is interpolated linearly inside the quantum.
func (p *Param) aValues(t0, t1 float64, dst *[quantumFrames]float32) {
	p.collapse(t0)
	v0 := p.valueAt(t0)
	v1 := p.valueAt(t1)
	step := (v1 - v0) / quantumFrames
	for i := range dst {
		dst[i] = float32(v0 + step*float64(i))
	}
	for _, m := range p.modulators {
		b := m.pull()
		if b.channels == 0 {
			continue
		}
		for i := range dst {
			dst[i] += b.data[0][i]
		}
	}
}

func (p *Param) removeModulator(n *node) {
	p.modulators = removeNode(p.modulators, n)
}
