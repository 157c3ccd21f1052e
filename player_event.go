package xmseq

import (
	"math"
)

// PlayerEventKind is an event tag that should be used to differentiate between different event types.
// See PlayerEvent docs for more info.
type PlayerEventKind int

const (
	// EventUnknown is a sentinel value.
	// You should never receive an event of this kind.
	EventUnknown PlayerEventKind = iota

	// EventRow is emitted every time a pattern row starts to play.
	// This is what a tracker UI uses to highlight the current row.
	//
	// Use PlayerEvent.RowEventData to get the event data.
	EventRow

	// EventNote is emitted every time a channel starts to play some note.
	// It can be triggered even by a retrigger effect, so it's up to the application
	// to decide whether they need to handle that note or not.
	//
	// Use PlayerEvent.NoteEventData to get the event data.
	EventNote

	// EventSongEnd is emitted when a non-looping song reaches its end.
	EventSongEnd

	// EventStop is emitted when a playback is unwound after Player.Stop.
	// The application should clear its current row highlight.
	EventStop
)

// PlayerEvent holds a single Player event data.
// This object is an argument to the PlayerConfig.EventHandler function.
//
// To handle the event correctly, you must first check its kind.
// For an event of kind EventNote there is a NoteEventData method that
// will return the associated data. For EventRow there is a RowEventData.
//
// Every event has a Time value. This is the host clock time
// the event is scheduled for; it's usually a bit ahead of the
// current time, so the application may need to delay its reaction.
type PlayerEvent struct {
	Kind PlayerEventKind

	// Channel is an event channel index.
	// It's -1 for the channel-independent events.
	Channel int

	// Time is the host clock time of the event in seconds.
	Time float64

	value uint64
}

func packNoteEventData(note, instrument int, vol float32) uint64 {
	instrumentBits := uint64(instrument) & 0xff
	if instrument <= 0 {
		instrumentBits = 255
	}
	return uint64(note&0xff) | instrumentBits<<8 | uint64(math.Float32bits(vol))<<16
}

// NoteEventData returns the event data if e.Kind=EventNote.
// The return values are: note, instrument (1-based number), volume.
// If there is no instrument in the pattern cell, -1 is returned.
func (e PlayerEvent) NoteEventData() (note, instrument int, vol float32) {
	noteBits := e.value & 0xff
	instrumentBits := (e.value >> 8) & 0xff
	volBits := e.value >> 16
	instrumentID := int(instrumentBits)
	if instrumentID == 255 {
		instrumentID = -1
	}
	return int(noteBits), instrumentID, math.Float32frombits(uint32(volBits))
}

func packRowEventData(songPosition, pattern, row int) uint64 {
	return uint64(uint16(songPosition)) | uint64(uint16(pattern))<<16 | uint64(uint16(row))<<32
}

// RowEventData returns the event data if e.Kind=EventRow.
// The return values are: song position (-1 outside of a song playback), pattern index, row index.
func (e PlayerEvent) RowEventData() (songPosition, pattern, row int) {
	songPosition = int(int16(e.value & 0xffff))
	pattern = int(uint16(e.value >> 16))
	row = int(uint16(e.value >> 32))
	return songPosition, pattern, row
}
