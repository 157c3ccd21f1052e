package xmseq

import (
	"github.com/quasilyte/xmseq/internal/xmdb"
)

// DescribeNote returns the tooltips for the note cells:
// note, instrument, volume, effect type and effect parameter.
// An empty string means there is nothing to say about the cell.
func DescribeNote(n Note) [5]string {
	return xmdb.Describe(n.Note, n.Instrument, n.Volume, n.EffectType, n.EffectParam)
}

// NoteName returns a tracker-style note name like "C-4".
// Empty notes are "···", the note-off is "off".
func NoteName(num uint8) string {
	return xmdb.NoteName(num)
}

// String returns the tracker-style cell text, like "C-4 01 40 F06".
func (n Note) String() string {
	return NoteName(n.Note) + " " +
		xmdb.FormatInstrument(n.Instrument) + " " +
		xmdb.FormatVolume(n.Volume) + " " +
		xmdb.FormatEffect(n.EffectType, n.EffectParam)
}
