package xmseq

import (
	"io"
	"log"

	"github.com/quasilyte/xmseq/internal/xmdb"
)

// PlayerConfig configures the module playback.
//
// These settings can't be changed after a player is created.
type PlayerConfig struct {
	// BPM sets the playback speed.
	// Higher BPM will make the music play faster.
	//
	// A zero value will use the XM module default BPM value.
	// If that value is zero as well, a value of 120 will be used.
	BPM uint

	// Tempo (called "Spd" in MilkyTracker) specifies the number of ticks per pattern row.
	// Perhaps a bit counter-intuitively, higher values make
	// the song play slower as there are more resolution steps inside a
	// single pattern row.
	//
	// A zero value will use the XM module default Tempo value.
	// If that value is zero as well, a value of 6 will be used.
	Tempo uint

	// Volume is the master gain at the full global volume.
	// A zero value means 0.2, which leaves some headroom for
	// the modules with many channels.
	Volume float64

	// StopGrace is a time (in seconds) after Stop during which
	// new playback requests are ignored and finish immediately.
	// This gives the pending row callbacks a chance to unwind.
	//
	// A zero value means 0.5.
	StopGrace float64

	// Logger is used to report the playback problems.
	// A nil value discards the messages.
	Logger *log.Logger

	// EventHandler is called on every player event.
	// It's called from the scheduler callbacks, so it should return quickly.
	EventHandler func(e PlayerEvent)
}

// Player sequences the XM module patterns on the audio host.
//
// The Player is not thread-safe. All its methods (and the scheduler
// callbacks it installs) must be executed under the same lock that
// protects the audio host rendering.
type Player struct {
	module *Module
	host   AudioHost
	sched  *Scheduler
	config PlayerConfig
	logger *log.Logger

	master   GainNode
	channels []*Channel

	// These values can change during the playback.
	tempo        int // Also known as "ticks per row" and "spd"
	bpm          int
	globalVolume float64

	songPosition int
	patternIndex int
	row          int

	// Jump state; noJump means there is no pending jump.
	nextSongPosition    int
	nextPatternStartRow int
	nextRow             int

	playback *playback

	stopRequested bool
	stopSeq       int
}

const noJump = -1

// playback is a single PlaySong or PlayPattern call chain.
type playback struct {
	cancelled bool

	// rowTimer cancels the next row callback.
	rowTimer CancelFunc

	// resume is the next row callback itself;
	// Stop executes it right away to unwind the chain.
	resume func(when float64)
}

func NewPlayer(m *Module, env AudioEnv, config PlayerConfig) *Player {
	applyConfigDefaults(m, &config)

	logger := config.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	p := &Player{
		module:              m,
		host:                env.Host,
		sched:               env.Scheduler,
		config:              config,
		logger:              logger,
		songPosition:        noJump,
		nextSongPosition:    noJump,
		nextPatternStartRow: noJump,
		nextRow:             noJump,
	}

	p.master = p.host.NewGain()
	p.master.Connect(p.host.Destination())

	p.channels = make([]*Channel, m.NumChannels)
	for i := range p.channels {
		p.channels[i] = newChannel(p, i)
	}

	p.resetTempo()
	p.setGlobalVolume(p.host.CurrentTime(), 0x40)

	return p
}

func applyConfigDefaults(m *Module, config *PlayerConfig) {
	if config.BPM == 0 {
		config.BPM = uint(m.DefaultBPM)
		if config.BPM == 0 {
			config.BPM = 120
		}
	}
	if config.Tempo == 0 {
		config.Tempo = uint(m.DefaultTempo)
		if config.Tempo == 0 {
			config.Tempo = 6
		}
	}
	if config.Volume == 0 {
		config.Volume = 0.2
	}
	if config.StopGrace == 0 {
		config.StopGrace = 0.5
	}
}

func (p *Player) Module() *Module { return p.module }

func (p *Player) NumChannels() int { return len(p.channels) }

func (p *Player) Channel(i int) *Channel { return p.channels[i] }

// Tempo returns the current number of ticks per row.
func (p *Player) Tempo() int { return p.tempo }

func (p *Player) BPM() int { return p.bpm }

// GlobalVolume returns the current global volume in [0, 0x40].
func (p *Player) GlobalVolume() float64 { return p.globalVolume }

// SongPosition returns the pattern order index that is being played.
// It's -1 if no song was played yet.
func (p *Player) SongPosition() int { return p.songPosition }

// Position returns the pattern and row indexes that were played the last.
func (p *Player) Position() (pattern, row int) { return p.patternIndex, p.row }

// IsPlaying reports whether there is an active playback.
func (p *Player) IsPlaying() bool { return p.playback != nil }

// TickDuration returns the current duration of one tick in seconds.
func (p *Player) TickDuration() float64 {
	return 2.5 / float64(p.bpm)
}

// RowDuration returns the current duration of one pattern row in seconds.
func (p *Player) RowDuration() float64 {
	return float64(p.tempo) * p.TickDuration()
}

func (p *Player) resetTempo() {
	p.tempo = int(p.config.Tempo)
	p.bpm = int(p.config.BPM)
}

func (p *Player) emit(e PlayerEvent) {
	if p.config.EventHandler != nil {
		p.config.EventHandler(e)
	}
}

func (p *Player) setGlobalVolume(when, v float64) {
	p.globalVolume = v
	p.master.Gain().SetValueAtTime(p.config.Volume*v/0x40, when)
}

func (p *Player) globalVolumeSlide(when float64, up bool, rate float64) {
	old := p.globalVolume
	delta := rate * float64(p.tempo)
	if !up {
		delta = -delta
	}
	p.globalVolume = clamp(old+delta, 0, 0x40)
	g := p.master.Gain()
	g.SetValueAtTime(p.config.Volume*old/0x40, when)
	g.LinearRampToValueAtTime(p.config.Volume*p.globalVolume/0x40, when+p.RowDuration())
}

func (p *Player) applyGlobalEffect(when float64, e xmdb.Effect) {
	switch e.Op {
	case xmdb.EffectSetTempo:
		// F00 would stop the playback in other trackers; it's ignored here.
		if e.Arg != 0 {
			p.tempo = int(e.Arg)
		}
	case xmdb.EffectSetBPM:
		p.bpm = int(e.Arg)
	case xmdb.EffectSetGlobalVolume:
		p.setGlobalVolume(when, clamp(float64(e.Arg), 0, 0x40))
	case xmdb.EffectGlobalVolumeSlide:
		hi, lo := e.Nibbles()
		if hi != 0 {
			p.globalVolumeSlide(when, true, float64(hi))
		} else {
			p.globalVolumeSlide(when, false, float64(lo))
		}
	}
}

func (p *Player) jumpToPosition(pos int) {
	p.nextSongPosition = pos
}

func (p *Player) breakPattern(row int) {
	p.nextPatternStartRow = row
	p.nextSongPosition = p.songPosition + 1
}

func (p *Player) loopPatternRow(row int) {
	p.nextRow = row
}

// PlayNote applies a single note command to the channel right now.
// It can be used to preview the notes and instruments.
func (p *Player) PlayNote(n Note, channel int) {
	if channel < 0 || channel >= len(p.channels) {
		p.logger.Printf("play note: channel %d is out of range", channel)
		return
	}
	p.channels[channel].ApplyCommand(p.sched.Now(), n)
}

func (p *Player) playRow(when float64, row Row) {
	for i, n := range row {
		if i >= len(p.channels) {
			break
		}
		p.channels[i].ApplyCommand(when, n)
	}
}

// StopAllChannels cuts all channel notes and drops the pending jumps.
func (p *Player) StopAllChannels() {
	p.stopAllChannels(p.sched.Now())
}

func (p *Player) stopAllChannels(when float64) {
	p.nextSongPosition = noJump
	p.nextPatternStartRow = noJump
	p.nextRow = noJump
	for _, c := range p.channels {
		c.cutNote(when)
	}
}

// Stop stops the current playback.
//
// The playback chain is unwound asynchronously: its onEnded callback
// is called during the next scheduler pass. New playback requests
// that arrive during the StopGrace period end immediately.
func (p *Player) Stop() {
	now := p.sched.Now()
	p.stopRequested = true
	p.stopSeq++
	seq := p.stopSeq

	p.stopAllChannels(now)

	if pb := p.playback; pb != nil {
		p.playback = nil
		pb.cancelled = true
		if pb.rowTimer != nil {
			pb.rowTimer()
			pb.rowTimer = nil
		}
		if resume := pb.resume; resume != nil {
			pb.resume = nil
			p.sched.AfterDelay(now, 0, resume)
		}
	}

	p.sched.AfterDelay(now, p.config.StopGrace, func(float64) {
		if p.stopSeq == seq {
			p.stopRequested = false
		}
	})
}

func (p *Player) startPlayback() *playback {
	if old := p.playback; old != nil {
		// Only one playback can be active.
		old.cancelled = true
		if old.rowTimer != nil {
			old.rowTimer()
		}
	}
	pb := &playback{}
	p.playback = pb
	return pb
}

func (p *Player) finishPlayback(pb *playback) {
	if p.playback == pb {
		p.playback = nil
	}
}

func wrapOnEnded(onEnded func()) func(when float64) {
	return func(float64) {
		if onEnded != nil {
			onEnded()
		}
	}
}

// PlaySong plays the pattern order table starting from the startIndex position.
//
// onEnded (can be nil) is called when the song ends or the playback is stopped.
// With loop=true, the song restarts from the restart position after its end.
func (p *Player) PlaySong(startIndex int, onEnded func(), loop bool) {
	if p.stopRequested {
		if onEnded != nil {
			onEnded()
		}
		return
	}
	pb := p.startPlayback()
	p.playSong(pb, p.sched.Now(), startIndex, wrapOnEnded(onEnded), loop)
}

// PlayPattern plays a single pattern starting from the startRow.
//
// onEnded (can be nil) is called when the pattern ends or the playback is stopped.
// With loop=true, the pattern is repeated until Stop is called.
func (p *Player) PlayPattern(patternIndex, startRow int, onEnded func(), loop bool) {
	p.PlayPatternAt(p.sched.Now(), patternIndex, startRow, onEnded, loop)
}

// PlayPatternAt is like PlayPattern, but the first row is played at the specified time.
func (p *Player) PlayPatternAt(startTime float64, patternIndex, startRow int, onEnded func(), loop bool) {
	if p.stopRequested {
		if onEnded != nil {
			onEnded()
		}
		return
	}
	if patternIndex < 0 || patternIndex >= len(p.module.Patterns) {
		p.logger.Printf("play pattern: pattern %d is out of range", patternIndex)
		if onEnded != nil {
			onEnded()
		}
		return
	}
	pb := p.startPlayback()
	p.songPosition = noJump
	p.playPattern(pb, startTime, patternIndex, startRow, func(float64) {
		// The jumps are meaningless outside of a song.
		p.nextSongPosition = noJump
		p.nextPatternStartRow = noJump
		p.finishPlayback(pb)
		if onEnded != nil {
			onEnded()
		}
	}, loop)
}

func (p *Player) playPattern(pb *playback, when float64, patternIndex, startRow int, onEnded func(when float64), loop bool) {
	if pb.cancelled {
		p.emit(PlayerEvent{Kind: EventStop, Channel: -1, Time: when})
		if onEnded != nil {
			onEnded(when)
		}
		return
	}

	pat := &p.module.Patterns[patternIndex]
	if p.nextSongPosition != noJump {
		startRow = len(pat.Rows)
	}

	if startRow < len(pat.Rows) {
		p.patternIndex = patternIndex
		p.row = startRow
		p.emit(PlayerEvent{
			Kind:    EventRow,
			Channel: -1,
			Time:    when,
			value:   packRowEventData(p.songPosition, patternIndex, startRow),
		})

		p.playRow(when, pat.Rows[startRow])

		nextRow := startRow + 1
		if p.nextRow != noJump {
			nextRow = p.nextRow
			p.nextRow = noJump
		}
		resume := func(t float64) {
			p.playPattern(pb, t, patternIndex, nextRow, onEnded, loop)
		}
		pb.resume = resume
		pb.rowTimer = p.sched.AfterDelay(when, p.RowDuration(), func(t float64) {
			pb.rowTimer = nil
			pb.resume = nil
			resume(t)
		})
		return
	}

	if loop && len(pat.Rows) != 0 {
		p.nextSongPosition = noJump
		p.nextPatternStartRow = noJump
		p.playPattern(pb, when, patternIndex, 0, onEnded, loop)
		return
	}

	if onEnded != nil {
		onEnded(when)
	}
}

func (p *Player) playSong(pb *playback, when float64, index int, onEnded func(when float64), loop bool) {
	if pb.cancelled {
		if onEnded != nil {
			onEnded(when)
		}
		return
	}

	if index == 0 {
		p.resetTempo()
	}
	if p.nextSongPosition != noJump {
		index = p.nextSongPosition
		p.nextSongPosition = noJump
	}

	order := p.module.PatternOrder
	if index < len(order) {
		p.songPosition = index
		startRow := 0
		if p.nextPatternStartRow != noJump {
			startRow = p.nextPatternStartRow
			p.nextPatternStartRow = noJump
		}
		patternIndex := order[index]
		if startRow >= len(p.module.Patterns[patternIndex].Rows) {
			startRow = 0
		}
		p.playPattern(pb, when, patternIndex, startRow, func(t float64) {
			p.playSong(pb, t, index+1, onEnded, loop)
		}, false)
		return
	}

	if loop && len(order) != 0 {
		restart := p.module.RestartPosition
		if restart >= len(order) {
			restart = 0
		}
		p.playSong(pb, when, restart, onEnded, loop)
		return
	}

	p.stopAllChannels(when)
	p.emit(PlayerEvent{Kind: EventSongEnd, Channel: -1, Time: when})
	p.finishPlayback(pb)
	if onEnded != nil {
		onEnded(when)
	}
}
