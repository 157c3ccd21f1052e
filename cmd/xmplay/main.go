package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/quasilyte/xmseq"
	"github.com/quasilyte/xmseq/xmfile"
	"github.com/spf13/pflag"
)

// This CLI tool plays the specified XM track using Ebitengine audio player
// or renders it into a WAV file.

type options struct {
	loop     bool
	position int
	pattern  int
	row      int
	bpm      uint
	tempo    uint
	volume   float64
	wav      string
	seconds  float64
	dump     bool
	describe bool
	verbose  bool
}

func main() {
	logger := log.New(os.Stderr, "xmplay: ", log.Ltime)

	var opts options
	pflag.BoolVarP(&opts.loop, "loop", "l", false, "restart the song (or pattern) after its end")
	pflag.IntVarP(&opts.position, "position", "p", 0, "the song position to start from")
	pflag.IntVar(&opts.pattern, "pattern", -1, "play a single pattern instead of the song")
	pflag.IntVar(&opts.row, "row", 0, "the pattern row to start from (with --pattern)")
	pflag.UintVar(&opts.bpm, "bpm", 0, "override the module default BPM")
	pflag.UintVar(&opts.tempo, "tempo", 0, "override the module default tempo (ticks per row)")
	pflag.Float64Var(&opts.volume, "volume", 0, "master volume; 0 means the player default")
	pflag.StringVar(&opts.wav, "wav", "", "render the track into the WAV file instead of playing it")
	pflag.Float64Var(&opts.seconds, "seconds", 600, "the WAV render time limit")
	pflag.BoolVar(&opts.dump, "dump", false, "dump the parsed XM file header and exit")
	pflag.BoolVar(&opts.describe, "describe", false, "print the pattern data in the song order and exit")
	pflag.BoolVarP(&opts.verbose, "verbose", "v", false, "log the playback events")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: xmplay [flags] path/to/music.xm\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() < 1 {
		pflag.Usage()
		os.Exit(2)
	}
	filename := pflag.Arg(0)

	data, err := os.ReadFile(filename)
	if err != nil {
		logger.Fatalf("read XM file: %v", err)
	}
	xmParser := xmfile.NewParser(xmfile.ParserConfig{
		NeedStrings:           true,
		AllowTruncatedSamples: true,
		OnWarning: func(w *xmfile.ParseError) {
			if opts.verbose {
				logger.Printf("warning: %v", w)
			}
		},
	})
	rawModule, err := xmParser.ParseFromBytes(data)
	if err != nil {
		logger.Fatalf("parsing XM file: %v", err)
	}

	if opts.dump {
		dumpModule(rawModule)
		return
	}

	m, err := xmseq.LoadModule(rawModule)
	if err != nil {
		logger.Fatalf("compiling XM module: %v", err)
	}
	if opts.verbose {
		logger.Printf("%q: %d channels, %d patterns, %d instruments, ~%d bytes",
			m.Name, m.NumChannels, len(m.Patterns), len(m.Instruments), m.MemoryUsage())
	}

	if opts.describe {
		w := bufio.NewWriter(os.Stdout)
		describeModule(w, m, opts.verbose)
		if err := w.Flush(); err != nil {
			logger.Fatal(err)
		}
		return
	}

	if opts.pattern >= len(m.Patterns) {
		logger.Fatalf("pattern %d is out of range (%d patterns)", opts.pattern, len(m.Patterns))
	}

	if opts.wav != "" {
		if err := renderWAV(m, &opts, logger); err != nil {
			logger.Fatalf("render WAV: %v", err)
		}
		return
	}

	if err := playRealtime(filename, m, &opts, logger); err != nil {
		logger.Fatal(err)
	}
}

func newPlayerConfig(opts *options, logger *log.Logger) xmseq.PlayerConfig {
	config := xmseq.PlayerConfig{
		BPM:    opts.bpm,
		Tempo:  opts.tempo,
		Volume: opts.volume,
		Logger: logger,
	}
	if opts.verbose {
		config.EventHandler = func(e xmseq.PlayerEvent) {
			logEvent(logger, e)
		}
	}
	return config
}

func startPlayback(p *xmseq.Player, opts *options, onEnded func()) {
	if opts.pattern >= 0 {
		p.PlayPattern(opts.pattern, opts.row, onEnded, opts.loop)
		return
	}
	p.PlaySong(opts.position, onEnded, opts.loop)
}

func logEvent(logger *log.Logger, e xmseq.PlayerEvent) {
	switch e.Kind {
	case xmseq.EventRow:
		pos, pat, row := e.RowEventData()
		logger.Printf("%8.3f row: position=%d pattern=%d row=%d", e.Time, pos, pat, row)
	case xmseq.EventNote:
		note, inst, vol := e.NoteEventData()
		logger.Printf("%8.3f note: channel=%d %s instrument=%d volume=%.2f",
			e.Time, e.Channel, xmseq.NoteName(uint8(note)), inst, vol)
	case xmseq.EventSongEnd:
		logger.Printf("%8.3f song end", e.Time)
	case xmseq.EventStop:
		logger.Printf("%8.3f stopped", e.Time)
	}
}

func dumpModule(m *xmfile.Module) {
	// The sample data and the note table are too big to be useful here.
	header := *m
	header.Notes = nil
	header.Patterns = nil
	header.Instruments = make([]xmfile.Instrument, len(m.Instruments))
	for i, inst := range m.Instruments {
		inst.KeymapAssignments = nil
		samples := make([]xmfile.InstrumentSample, len(inst.Samples))
		for j, s := range inst.Samples {
			s.Data = nil
			samples[j] = s
		}
		inst.Samples = samples
		header.Instruments[i] = inst
	}

	cfg := spew.ConfigState{
		Indent:                  "  ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	cfg.Dump(header)
}

func describeModule(w io.Writer, m *xmseq.Module, verbose bool) {
	fmt.Fprintf(w, "%s (%s)\n", m.Name, m.TrackerName)
	for i := range m.Instruments {
		inst := &m.Instruments[i]
		if inst.Name != "" || len(inst.Samples) != 0 {
			fmt.Fprintf(w, "instrument %02x: %q, %d samples\n", i+1, inst.Name, len(inst.Samples))
		}
	}

	cells := make([]string, m.NumChannels)
	for pos, patternIndex := range m.PatternOrder {
		fmt.Fprintf(w, "\nposition %d: pattern %d\n", pos, patternIndex)
		for rowIndex, row := range m.Patterns[patternIndex].Rows {
			for i, n := range row {
				cells[i] = n.String()
			}
			fmt.Fprintf(w, "%02x | %s\n", rowIndex, strings.Join(cells[:len(row)], " | "))
			if !verbose {
				continue
			}
			for i, n := range row {
				for _, tooltip := range xmseq.DescribeNote(n) {
					if tooltip != "" {
						fmt.Fprintf(w, "     ch%d: %s\n", i, tooltip)
					}
				}
			}
		}
	}
}
