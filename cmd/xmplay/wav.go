package main

import (
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/quasilyte/xmseq"
	"github.com/quasilyte/xmseq/audiograph"
)

// renderWAV plays the module on an offline audio graph.
// The scheduler is advanced by the graph itself right before
// every rendered quantum, so the output does not depend on the wall clock.
func renderWAV(m *xmseq.Module, opts *options, logger *log.Logger) error {
	const (
		sampleRate  = 44100
		numChannels = 2
		blockFrames = 4096

		// The tail lets the cut notes fade out.
		tailSeconds = 0.5
	)

	graph := audiograph.NewContext(audiograph.Config{SampleRate: sampleRate})
	sched := xmseq.NewScheduler(graph, xmseq.SchedulerConfig{Logger: logger})
	graph.SetRenderHook(func(from, to float64) {
		sched.Advance(to)
	})

	player := xmseq.NewPlayer(m, xmseq.AudioEnv{Host: graph, Scheduler: sched}, newPlayerConfig(opts, logger))
	ended := false
	graph.Do(func() {
		startPlayback(player, opts, func() { ended = true })
	})

	f, err := os.Create(opts.wav)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	buf := make([]float32, blockFrames*numChannels)
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(buf)),
		SourceBitDepth: 16,
	}

	endTime := opts.seconds
	for graph.CurrentTime() < endTime {
		graph.RenderFloat32(buf)
		for i, v := range buf {
			intBuf.Data[i] = int(clampSample(v) * 32767)
		}
		if err := enc.Write(intBuf); err != nil {
			return err
		}
		if ended && endTime > graph.CurrentTime()+tailSeconds {
			endTime = graph.CurrentTime() + tailSeconds
		}
	}
	if !ended {
		logger.Printf("the render is stopped after %.1f seconds", opts.seconds)
	}

	if err := enc.Close(); err != nil {
		return err
	}
	logger.Printf("%s: %.1f seconds rendered", opts.wav, graph.CurrentTime())
	return nil
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
