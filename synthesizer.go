package xmseq

import (
	"log"
)

// Synthesizer can be used to play individual XM notes
// using the module instruments.
//
// It's a player without patterns: every channel can be
// triggered and released on demand, like a keyboard.
type Synthesizer struct {
	player *Player
}

type SynthesizerConfig struct {
	NumChannels int

	// Volume is the master gain, see PlayerConfig.Volume.
	Volume float64

	Logger *log.Logger
}

// NewSynthesizer creates a synthesizer for the module instruments.
// The module patterns are not used.
func NewSynthesizer(m *Module, env AudioEnv, config SynthesizerConfig) *Synthesizer {
	if config.NumChannels <= 0 {
		config.NumChannels = 1
	}
	instOnly := &Module{
		Name:              m.Name,
		NumChannels:       config.NumChannels,
		DefaultTempo:      m.DefaultTempo,
		DefaultBPM:        m.DefaultBPM,
		LinearFrequencies: m.LinearFrequencies,
		Instruments:       m.Instruments,
	}
	return &Synthesizer{
		player: NewPlayer(instOnly, env, PlayerConfig{
			Volume: config.Volume,
			Logger: config.Logger,
		}),
	}
}

// PlayNote triggers the note on the channel right now.
// The note can carry the volume and effect commands as well.
func (s *Synthesizer) PlayNote(channel int, n Note) {
	s.player.PlayNote(n, channel)
}

// Release releases the channel note, letting its envelopes and fadeout finish.
func (s *Synthesizer) Release(channel int) {
	s.player.PlayNote(Note{Note: NoteOff}, channel)
}

// StopAll cuts all playing notes.
func (s *Synthesizer) StopAll() {
	s.player.StopAllChannels()
}

func (s *Synthesizer) Channel(i int) *Channel {
	return s.player.Channel(i)
}
