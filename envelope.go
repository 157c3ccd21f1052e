package xmseq

// envelopeRunner schedules the instrument envelope points
// on the param of a dedicated envelope node.
type envelopeRunner struct {
	env   *Envelope
	param AudioParam

	// convert maps an envelope point value to the param value.
	convert func(v int) float64

	cancelLoop CancelFunc
}

func volumeEnvelopeValue(v int) float64 {
	return float64(v) / 64
}

func panningEnvelopeValue(v int) float64 {
	return float64(v-32) / 32
}

func (r *envelopeRunner) enabled() bool { return r.env != nil }

func (r *envelopeRunner) stopLoop() {
	if r.cancelLoop != nil {
		r.cancelLoop()
		r.cancelLoop = nil
	}
}

// valueAt returns the interpolated envelope value at the given tick.
func (env *Envelope) valueAt(tick int) float64 {
	points := env.Points
	if tick <= points[0].Tick {
		return float64(points[0].Value)
	}
	for i := 1; i < len(points); i++ {
		a := points[i-1]
		b := points[i]
		if tick > b.Tick {
			continue
		}
		if b.Tick == a.Tick {
			return float64(b.Value)
		}
		k := float64(tick-a.Tick) / float64(b.Tick-a.Tick)
		return float64(a.Value) + k*float64(b.Value-a.Value)
	}
	return float64(points[len(points)-1].Value)
}

// triggerEnvelope schedules the envelope starting from the first point;
// base is the time that corresponds to the envelope tick 0.
func (c *Channel) triggerEnvelope(base float64, r *envelopeRunner, first int) {
	c.scheduleEnvelope(base, r, first, false)
}

func (c *Channel) scheduleEnvelope(base float64, r *envelopeRunner, first int, rampFirst bool) {
	if !r.enabled() {
		return
	}
	env := r.env
	td := c.player.TickDuration()
	now := c.player.host.CurrentTime()

	for i := first; i < len(env.Points); i++ {
		pt := env.Points[i]
		t := base + float64(pt.Tick)*td
		if t >= now {
			v := r.convert(pt.Value)
			if i == first && !rampFirst {
				r.param.SetValueAtTime(v, t)
			} else {
				r.param.LinearRampToValueAtTime(v, t)
			}
		}

		if c.phase == PhaseSustain && env.HasSustain && i == env.SustainPoint {
			break
		}

		if env.HasLoop && i == env.LoopEndPoint {
			// A loop that takes no time is held instead.
			if pt.Tick > env.Points[env.LoopStartPoint].Tick {
				r.stopLoop()
				r.cancelLoop = c.player.sched.AfterDelay(base, float64(pt.Tick)*td, func(when float64) {
					r.cancelLoop = nil
					c.loopEnvelope(when, r)
				})
			}
			break
		}
	}
}

// loopEnvelope restarts the envelope from the loop start point,
// which is reached at the specified time.
func (c *Channel) loopEnvelope(when float64, r *envelopeRunner) {
	env := r.env
	start := env.Points[env.LoopStartPoint].Tick
	c.triggerEnvelope(when-float64(start)*c.player.TickDuration(), r, env.LoopStartPoint)
}

// releaseEnvelope continues the envelope past its sustain point.
func (c *Channel) releaseEnvelope(when float64, r *envelopeRunner) {
	if !r.enabled() || !r.env.HasSustain {
		return
	}
	env := r.env
	r.stopLoop()

	sustainOffset := float64(env.Points[env.SustainPoint].Tick) * c.player.TickDuration()
	base := maxFloat(c.lastTriggerTime, when-sustainOffset)
	r.param.CancelScheduledValues(base + sustainOffset)
	// If the sustain point is not reached yet, keep ramping towards it.
	early := when-sustainOffset < c.lastTriggerTime
	c.scheduleEnvelope(base, r, env.SustainPoint, early)
}

func (c *Channel) cutEnvelope(when float64, r *envelopeRunner) {
	if !r.enabled() {
		return
	}
	r.param.CancelScheduledValues(when)
	r.stopLoop()
}

// jumpEnvelope moves the envelope position to the given tick.
func (c *Channel) jumpEnvelope(when float64, r *envelopeRunner, tick int) {
	if !r.enabled() || c.phase == PhaseOff {
		return
	}
	c.cutEnvelope(when, r)

	env := r.env
	r.param.SetValueAtTime(r.convert(int(env.valueAt(tick)+0.5)), when)

	next := len(env.Points)
	for i, pt := range env.Points {
		if pt.Tick > tick {
			next = i
			break
		}
	}
	if next == len(env.Points) {
		return
	}
	if c.phase == PhaseSustain && env.HasSustain && env.SustainPoint < next {
		// Already past the sustain point: hold.
		return
	}
	if env.HasLoop && env.LoopEndPoint < next {
		c.loopEnvelope(when, r)
		return
	}
	c.scheduleEnvelope(when-float64(tick)*c.player.TickDuration(), r, next, true)
}
