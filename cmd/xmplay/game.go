package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/xmseq"
	"github.com/quasilyte/xmseq/audiograph"
)

// playRealtime streams the audio graph into the Ebitengine audio player.
//
// The scheduler runs in its own goroutine, slightly ahead of the
// audio thread; both of them hold the graph lock while they work.
func playRealtime(filename string, m *xmseq.Module, opts *options, logger *log.Logger) error {
	graph := audiograph.NewContext(audiograph.Config{})
	sched := xmseq.NewScheduler(graph, xmseq.SchedulerConfig{
		Logger:    logger,
		Guard:     graph,
		Lookahead: 0.1,
	})

	g := &game{
		filename: filename,
		graph:    graph,
		opts:     opts,
	}

	config := newPlayerConfig(opts, logger)
	eventHandler := config.EventHandler
	config.EventHandler = func(e xmseq.PlayerEvent) {
		if e.Kind == xmseq.EventRow {
			pos, pat, row := e.RowEventData()
			g.position, g.pattern, g.row = pos, pat, row
		}
		if eventHandler != nil {
			eventHandler(e)
		}
	}
	g.player = xmseq.NewPlayer(m, xmseq.AudioEnv{Host: graph, Scheduler: sched}, config)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	g.interrupted = ctx.Done()
	go func() {
		_ = sched.Run(ctx)
	}()

	// You can have multiple players, but only one audio context.
	// See Ebitengine docs to learn more.
	audioContext := audio.NewContext(graph.SampleRate())
	audioPlayer, err := audioContext.NewPlayer(graph)
	if err != nil {
		return err
	}
	audioPlayer.Play()

	g.start()

	ebiten.SetWindowSize(480, 120)
	ebiten.SetWindowTitle("xmplay: " + filename)
	return ebiten.RunGame(g)
}

type game struct {
	filename string
	graph    *audiograph.Context
	player   *xmseq.Player
	opts     *options

	// Guarded by the graph lock.
	position int
	pattern  int
	row      int
	playing  bool

	ended       atomic.Bool
	interrupted <-chan struct{}
}

func (g *game) start() {
	g.ended.Store(false)
	g.graph.Do(func() {
		g.playing = true
		startPlayback(g.player, g.opts, func() {
			g.playing = false
			g.ended.Store(true)
		})
	})
}

func (g *game) Update() error {
	select {
	case <-g.interrupted:
		g.graph.Do(g.player.Stop)
		return ebiten.Termination
	default:
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if g.ended.Load() {
			g.start()
		} else {
			g.graph.Do(g.player.Stop)
		}
		return nil
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	var position, pattern, row int
	var playing bool
	g.graph.Do(func() {
		position, pattern, row, playing = g.position, g.pattern, g.row, g.playing
	})

	status := "Stopped... press SPACE to play, ESC to quit"
	if playing {
		status = fmt.Sprintf("Playing %s...\nposition %d, pattern %d, row %02x\nSPACE stops the playback",
			g.filename, position, pattern, row)
	}
	ebitenutil.DebugPrint(screen, status)
}

func (g *game) Layout(_, _ int) (int, int) {
	return 480, 120
}
