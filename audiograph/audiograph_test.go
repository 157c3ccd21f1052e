package audiograph

import (
	"math"
	"testing"

	"github.com/quasilyte/xmseq"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestParamAutomation(t *testing.T) {
	ctx := NewContext(Config{})

	p := newParam(ctx, 1)
	if v := p.valueAt(10); v != 1 {
		t.Fatalf("default value = %v, want 1", v)
	}

	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)
	tests := []struct {
		t    float64
		want float64
	}{
		{0.5, 1},
		{1, 0},
		{1.5, 0.5},
		{2, 1},
		{3, 1},
	}
	for _, test := range tests {
		if v := p.valueAt(test.t); !approxEqual(v, test.want, 1e-9) {
			t.Fatalf("linear: valueAt(%v) = %v, want %v", test.t, v, test.want)
		}
	}

	p.ExponentialRampToValueAtTime(4, 4)
	if v := p.valueAt(3); !approxEqual(v, 2, 1e-9) {
		t.Fatalf("exponential: valueAt(3) = %v, want 2", v)
	}

	p.SetTargetAtTime(0, 5, 0.1)
	if v := p.valueAt(5.1); !approxEqual(v, 4*math.Exp(-1), 1e-9) {
		t.Fatalf("target: valueAt(5.1) = %v, want %v", v, 4*math.Exp(-1))
	}
}

func TestParamCancelHoldsRamp(t *testing.T) {
	ctx := NewContext(Config{})

	p := newParam(ctx, 0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.SetValueAtTime(5, 2)

	p.CancelScheduledValues(0.5)
	if v := p.valueAt(0.25); !approxEqual(v, 0.25, 1e-9) {
		t.Fatalf("valueAt(0.25) = %v, want 0.25", v)
	}
	if v := p.valueAt(3); !approxEqual(v, 0.5, 1e-9) {
		t.Fatalf("valueAt(3) = %v, want 0.5 (held)", v)
	}
}

func TestParamEventOrder(t *testing.T) {
	ctx := NewContext(Config{})

	p := newParam(ctx, 0)
	p.SetValueAtTime(3, 1)
	p.SetValueAtTime(1, 0.5)
	p.SetValueAtTime(2, 1)
	if v := p.valueAt(0.75); v != 1 {
		t.Fatalf("valueAt(0.75) = %v, want 1", v)
	}
	// Equal times keep the insertion order: the last one wins.
	if v := p.valueAt(1); v != 2 {
		t.Fatalf("valueAt(1) = %v, want 2", v)
	}

	p.collapse(2)
	if len(p.events) != 0 {
		t.Fatalf("events after collapse: %d, want 0", len(p.events))
	}
	if v := p.valueAt(5); v != 2 {
		t.Fatalf("valueAt(5) after collapse = %v, want 2", v)
	}
}

func testSample(n int, v int16) *xmseq.Sample {
	data := make([]int16, n)
	for i := range data {
		data[i] = v
	}
	return &xmseq.Sample{Data: data, BytesPerSample: 1, Volume: 64, Panning: 0x80}
}

func TestRenderBufferSource(t *testing.T) {
	ctx := NewContext(Config{})

	src := ctx.NewBufferSource(testSample(1000, 64))
	src.Connect(ctx.Destination())
	src.Start(0, 0)

	buf := make([]float32, 2*1024)
	ctx.RenderFloat32(buf)

	for i := 0; i < 2*1000; i++ {
		if buf[i] != 0.5 {
			t.Fatalf("sample[%d] = %v, want 0.5", i, buf[i])
		}
	}
	for i := 2 * 1000; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("sample[%d] = %v, want 0 after the buffer end", i, buf[i])
		}
	}

	if len(ctx.dest.inputs) != 0 {
		t.Fatalf("finished source is still connected")
	}
	if have, want := ctx.CurrentTime(), 1024.0/44100; !approxEqual(have, want, 1e-12) {
		t.Fatalf("CurrentTime() = %v, want %v", have, want)
	}
}

func TestRenderLoopAndStop(t *testing.T) {
	ctx := NewContext(Config{})

	s := testSample(100, 32)
	s.LoopType = xmseq.LoopForward
	s.LoopStart = 0
	s.LoopLength = 100

	src := ctx.NewBufferSource(s)
	g := ctx.NewGain()
	src.Connect(g)
	g.Connect(ctx.Destination())
	g.Gain().SetValueAtTime(0.5, 0)
	start, end := s.LoopBounds()
	src.SetLoop(start, end, false)
	src.Start(0, 0)
	src.Stop(512.0 / 44100)

	buf := make([]float32, 2*640)
	ctx.RenderFloat32(buf)

	if buf[2*300] != 0.125 {
		t.Fatalf("looped sample = %v, want 0.125", buf[2*300])
	}
	if buf[2*600] != 0 {
		t.Fatalf("stopped sample = %v, want 0", buf[2*600])
	}
	if len(ctx.dest.inputs) != 0 {
		t.Fatalf("the stopped chain is still connected")
	}
}

func TestPanner(t *testing.T) {
	ctx := NewContext(Config{})

	src := ctx.NewBufferSource(testSample(1000, 64))
	pan := ctx.NewPanner()
	src.Connect(pan)
	pan.Connect(ctx.Destination())
	pan.Pan().SetValueAtTime(1, 0)
	src.Start(0, 0)

	buf := make([]float32, 2*256)
	ctx.RenderFloat32(buf)

	l, r := float64(buf[2*200]), float64(buf[2*200+1])
	if !approxEqual(l, 0, 1e-6) || !approxEqual(r, 0.5, 1e-6) {
		t.Fatalf("hard right panning: l=%v r=%v", l, r)
	}
}

func TestReadPCM(t *testing.T) {
	ctx := NewContext(Config{})

	var hookCalls int
	var lastTo float64
	ctx.SetRenderHook(func(from, to float64) {
		if from != lastTo {
			t.Fatalf("hook from=%v, want %v", from, lastTo)
		}
		lastTo = to
		hookCalls++
	})

	src := ctx.NewBufferSource(testSample(44100, -128))
	src.Connect(ctx.Destination())
	src.Start(0, 0)

	b := make([]byte, 4*300+3)
	n, err := ctx.Read(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4*300 {
		t.Fatalf("Read() = %d, want %d", n, 4*300)
	}
	if hookCalls != 3 {
		t.Fatalf("hook calls = %d, want 3", hookCalls)
	}
	left := int16(uint16(b[0]) | uint16(b[1])<<8)
	right := int16(uint16(b[2]) | uint16(b[3])<<8)
	if left != -math.MaxInt16 || right != -math.MaxInt16 {
		t.Fatalf("PCM frame = (%d, %d), want full negative", left, right)
	}
}

func TestOscillatorModulation(t *testing.T) {
	ctx := NewContext(Config{})

	g := ctx.NewGain()
	g.Connect(ctx.Destination())
	src := ctx.NewBufferSource(testSample(44100, 64))
	src.Connect(g)
	src.Start(0, 0)

	osc := ctx.NewOscillator()
	osc.SetWaveform(xmseq.WaveSquare)
	osc.Frequency().SetValueAtTime(1, 0)
	amp := ctx.NewGain()
	amp.Gain().SetValueAtTime(-0.5, 0)
	osc.Connect(amp)
	amp.ConnectParam(g.Gain())
	osc.Start(0)
	osc.Stop(256.0 / 44100)

	buf := make([]float32, 2*512)
	ctx.RenderFloat32(buf)

	// Square wave starts at 1: the gain is 1-0.5.
	if buf[2*10] != 0.25 {
		t.Fatalf("modulated sample = %v, want 0.25", buf[2*10])
	}
	if buf[2*400] != 0.5 {
		t.Fatalf("sample after the modulation stop = %v, want 0.5", buf[2*400])
	}
	if p := g.Gain().(*Param); len(p.modulators) != 0 {
		t.Fatalf("stopped modulator is still connected")
	}
}
