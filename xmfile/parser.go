package xmfile

import (
	"strings"
)

const (
	standardHeaderSize        = 276
	standardPatternHeaderSize = 9
	standardSampleHeaderSize  = 40
	standardVersion           = 0x0104

	// A zero-rows pattern is played as a default-sized empty pattern.
	defaultNumRows = 64

	maxEnvelopePoints = 12
)

type parser struct {
	r      reader
	config ParserConfig

	// module holds the results of XM parsing.
	module Module

	rows arena[PatternRow]
	ids  arena[uint16]

	// noteIDs interns the pattern notes.
	// The keys always have ID=0.
	noteIDs map[PatternNote]uint16

	envelopeBuf [2 * maxEnvelopePoints]EnvelopePoint
}

func newParser(config ParserConfig) *parser {
	p := &parser{
		config:  config,
		noteIDs: make(map[PatternNote]uint16, 512),
		rows:    newArena[PatternRow](64 * 32),
		ids:     newArena[uint16](64 * 32 * 8),
	}
	p.module.Notes = make([]PatternNote, 0, 512)
	return p
}

func (p *parser) Parse(data []byte) (err error) {
	p.reset(data)

	defer func() {
		rv := recover()
		if rv == nil {
			return
		}
		parseErr, ok := rv.(*ParseError)
		if !ok {
			panic(rv)
		}
		err = parseErr
	}()

	p.parseModule()
	return nil
}

func (p *parser) reset(data []byte) {
	p.r.reset(data)
	for k := range p.noteIDs {
		delete(p.noteIDs, k)
	}
	p.rows.reset()
	p.ids.reset()

	// Keep the already allocated slices.
	p.module = Module{
		Notes:        p.module.Notes[:0],
		Patterns:     p.module.Patterns[:0],
		Instruments:  p.module.Instruments[:0],
		PatternOrder: p.module.PatternOrder[:0],
	}
}

func (p *parser) warnf(format string, args ...any) {
	if p.config.OnWarning == nil {
		return
	}
	p.config.OnWarning(p.r.errorf(format, args...))
}

// finishSection moves the reader to the end of the section
// which size is stated in its header.
//
// Some writers store smaller-than-needed sizes; in that case
// the extra bytes are considered to be a part of the section.
func (p *parser) finishSection(end int) {
	if p.r.pos > end {
		p.warnf("the stated size is %d bytes less than the contents", p.r.pos-end)
		return
	}
	p.r.seek(end)
}

func (p *parser) parseModule() {
	// The note with ID=0 is always empty.
	p.module.Notes = append(p.module.Notes, PatternNote{})

	p.r.enter("")
	p.parseHeader()

	p.r.enter("pattern")
	for i := 0; i < p.module.NumPatterns; i++ {
		p.r.sectionIndex = i
		p.module.Patterns = append(p.module.Patterns, p.parsePattern())
	}

	p.r.enter("instrument")
	for i := 0; i < p.module.NumInstruments; i++ {
		p.r.sectionIndex = i
		p.module.Instruments = append(p.module.Instruments, p.parseInstrument())
	}
}

func (p *parser) parseHeader() {
	r := &p.r
	m := &p.module

	idText := r.cstring(17, "id text")
	if !strings.EqualFold(idText, "extended module: ") {
		panic(r.errorf("unexpected ID text: %q", idText))
	}

	m.Name = strings.TrimSpace(r.cstring(20, "module name"))

	if b := r.u8("magic byte"); b != 0x1a {
		panic(r.errorf("expected 0x1a, found 0x%02x", b))
	}

	m.TrackerName = strings.TrimSpace(r.cstring(20, "tracker name"))

	version := r.u16("version")
	m.Version = [2]byte{uint8(version >> 8), uint8(version)}
	if version != standardVersion {
		p.warnf("unexpected format version %d.%02d", m.Version[0], m.Version[1])
	}

	// The header size includes the size field itself.
	headerStart := r.pos
	headerSize := int(r.u32("header size"))
	if headerSize != standardHeaderSize {
		p.warnf("unexpected header size %d", headerSize)
	}
	headerEnd := headerStart + headerSize
	if headerEnd > len(r.data) {
		panic(r.errorf("invalid header size: %d", headerSize))
	}

	m.SongLength = int(r.u16("song length"))
	if m.SongLength == 0 || m.SongLength > 256 {
		panic(r.errorf("invalid song length value: %d", m.SongLength))
	}

	m.RestartPosition = int(r.u16("restart position"))
	if m.RestartPosition >= m.SongLength {
		p.warnf("restart position %d is out of the song", m.RestartPosition)
		m.RestartPosition = 0
	}

	m.NumChannels = int(r.u16("number of channels"))
	if m.NumChannels == 0 || m.NumChannels > 64 {
		panic(r.errorf("invalid number of channels: %d", m.NumChannels))
	}
	m.NumPatterns = int(r.u16("number of patterns"))
	if m.NumPatterns > 256 {
		panic(r.errorf("invalid number of patterns: %d", m.NumPatterns))
	}
	m.NumInstruments = int(r.u16("number of instruments"))
	if m.NumInstruments > 128 {
		panic(r.errorf("invalid number of instruments: %d", m.NumInstruments))
	}

	m.Flags = r.u16("flags")
	m.DefaultTempo = int(r.u16("default tempo"))
	m.DefaultBPM = int(r.u16("default bpm"))

	m.PatternOrder = append(m.PatternOrder, r.bytes(m.SongLength, "pattern order table")...)

	p.finishSection(headerEnd)
}

func (p *parser) parsePattern() Pattern {
	r := &p.r
	numChannels := p.module.NumChannels

	headerStart := r.pos
	headerSize := int(r.u32("pattern header length"))
	if headerSize < standardPatternHeaderSize {
		panic(r.errorf("invalid pattern header length: %d", headerSize))
	}
	if headerSize != standardPatternHeaderSize {
		p.warnf("unexpected pattern header length %d", headerSize)
	}
	if packing := r.u8("packing type"); packing != 0 {
		p.warnf("unexpected packing type 0x%02x", packing)
	}
	numRows := int(r.u16("number of rows"))
	if numRows > 256 {
		panic(r.errorf("invalid number of rows: %d", numRows))
	}
	dataSize := int(r.u16("packed pattern data size"))
	r.seek(headerStart + headerSize)

	if numRows == 0 {
		p.warnf("a pattern without rows")
		numRows = defaultNumRows
	}

	pat := Pattern{
		IsEmpty: dataSize == 0,
		Rows:    p.rows.alloc(numRows),
	}
	for i := range pat.Rows {
		pat.Rows[i].Notes = p.ids.alloc(numChannels)
	}
	if dataSize == 0 {
		return pat
	}

	r.need(dataSize, "packed pattern data")
	dataEnd := r.pos + dataSize
	cells := numRows * numChannels
	for i := 0; i < cells && r.pos < dataEnd; i++ {
		note := p.parsePatternNote(dataEnd)
		pat.Rows[i/numChannels].Notes[i%numChannels] = p.internNote(note)
	}
	if r.pos < dataEnd {
		// Some trackers store more notes than the rows counter says.
		p.warnf("ignored %d bytes after the last pattern row", dataEnd-r.pos)
		r.seek(dataEnd)
	}

	return pat
}

// parsePatternNote decodes a single packed note.
//
// When MSB of the first byte is set, it's a mask that
// tells which note fields follow; the missing ones are 0.
// Otherwise the first byte is a note and all other fields follow.
func (p *parser) parsePatternNote(dataEnd int) PatternNote {
	r := &p.r

	mask := uint8(0b11111)
	var note PatternNote
	b := r.u8("note byte")
	if b&0x80 != 0 {
		mask = b
	} else {
		note.Note = b
		mask &^= 1
	}

	fields := [...]*uint8{
		&note.Note,
		&note.Instrument,
		&note.Volume,
		&note.EffectType,
		&note.EffectParameter,
	}
	for i, f := range fields {
		if mask&(1<<i) == 0 {
			continue
		}
		if r.pos >= dataEnd {
			panic(r.errorf("a note crosses the packed pattern data end"))
		}
		*f = r.u8("note field")
	}

	return note
}

func (p *parser) internNote(n PatternNote) uint16 {
	if n == (PatternNote{}) {
		return 0
	}
	if id, ok := p.noteIDs[n]; ok {
		return id
	}

	id := uint16(len(p.module.Notes))
	p.noteIDs[n] = id
	n.ID = id
	p.module.Notes = append(p.module.Notes, n)
	return id
}

func (p *parser) parseInstrument() Instrument {
	r := &p.r
	var inst Instrument

	headerStart := r.pos
	headerSize := int(r.u32("instrument header size"))
	headerEnd := headerStart + headerSize
	if headerEnd > len(r.data) {
		panic(r.errorf("incomplete instrument header data"))
	}

	inst.Name = p.optionalString(22, "instrument name")
	r.skip(1, "instrument type")

	numSamples := int(r.u16("number of samples"))
	if numSamples == 0 {
		p.finishSection(headerEnd)
		return inst
	}

	sampleHeaderSize := int(r.u32("sample header size"))
	if sampleHeaderSize != standardSampleHeaderSize {
		p.warnf("unexpected sample header size %d", sampleHeaderSize)
	}
	if sampleHeaderSize < standardSampleHeaderSize {
		sampleHeaderSize = standardSampleHeaderSize
	}

	inst.KeymapAssignments = r.bytes(96, "sample keymap assignments")

	inst.EnvelopeVolume = p.parseEnvelopePoints(p.envelopeBuf[:maxEnvelopePoints], "volume")
	inst.EnvelopePanning = p.parseEnvelopePoints(p.envelopeBuf[maxEnvelopePoints:], "panning")
	inst.EnvelopeVolume = p.trimEnvelope(inst.EnvelopeVolume, r.u8("number of volume points"))
	inst.EnvelopePanning = p.trimEnvelope(inst.EnvelopePanning, r.u8("number of panning points"))

	inst.VolumeSustainPoint = r.u8("volume sustain point")
	inst.VolumeLoopStartPoint = r.u8("volume loop start point")
	inst.VolumeLoopEndPoint = r.u8("volume loop end point")
	inst.PanningSustainPoint = r.u8("panning sustain point")
	inst.PanningLoopStartPoint = r.u8("panning loop start point")
	inst.PanningLoopEndPoint = r.u8("panning loop end point")

	inst.VolumeFlags = EnvelopeFlags(r.u8("volume type"))
	inst.PanningFlags = EnvelopeFlags(r.u8("panning type"))

	inst.VibratoType = r.u8("vibrato type")
	inst.VibratoSweep = r.u8("vibrato sweep")
	inst.VibratoDepth = r.u8("vibrato depth")
	inst.VibratoRate = r.u8("vibrato rate")

	inst.VolumeFadeout = int(r.u16("volume fadeout"))

	p.finishSection(headerEnd)

	inst.Samples = make([]InstrumentSample, numSamples)
	r.enterItem("sample")
	for i := range inst.Samples {
		r.itemIndex = i
		end := r.pos + sampleHeaderSize
		p.parseSampleHeader(&inst.Samples[i])
		r.seek(end)
	}

	// The sample data follows all sample headers.
	r.enterItem("sampledata")
	for i := range inst.Samples {
		r.itemIndex = i
		p.parseSampleData(&inst.Samples[i])
	}

	return inst
}

func (p *parser) parseEnvelopePoints(dst []EnvelopePoint, kind string) []EnvelopePoint {
	for i := range dst {
		dst[i].X = p.r.u16(kind + " envelope point x")
		dst[i].Y = p.r.u16(kind + " envelope point y")
	}
	return dst
}

// trimEnvelope copies the used points out of the scratch buffer.
func (p *parser) trimEnvelope(points []EnvelopePoint, n uint8) []EnvelopePoint {
	if n == 0 {
		return nil
	}
	if int(n) > maxEnvelopePoints {
		p.warnf("too many envelope points: %d", n)
		n = maxEnvelopePoints
	}
	result := make([]EnvelopePoint, n)
	copy(result, points)
	return result
}

func (p *parser) parseSampleHeader(sample *InstrumentSample) {
	r := &p.r

	length := r.u32("sample length")
	if length > 1<<30 {
		panic(r.errorf("invalid sample length: %d", length))
	}
	sample.Length = int(length)
	sample.LoopStart = int(r.u32("sample loop start"))
	sample.LoopLength = int(r.u32("sample loop length"))
	sample.Volume = int(r.u8("sample volume"))
	sample.Finetune = int(r.i8("sample finetune"))
	sample.TypeFlags = r.u8("sample type")
	sample.Panning = r.u8("sample panning")
	sample.RelativeNote = int(r.i8("sample relative note number"))

	switch format := r.u8("sample encoding"); format {
	case 0:
		sample.Format = SampleFormatDeltaPacked
	case 0xAD:
		sample.Format = SampleFormatADPCM
	default:
		panic(r.errorf("unknown sample encoding scheme (%#02x)", format))
	}

	sample.Name = p.optionalString(22, "sample name")
}

func (p *parser) parseSampleData(sample *InstrumentSample) {
	if sample.Length == 0 {
		return
	}
	size := sample.Length
	if sample.Format == SampleFormatADPCM {
		// 16 bytes of the compression table + 4-bit deltas.
		size = 16 + (sample.Length+1)/2
	}
	if p.r.remaining() >= size {
		sample.Data = p.r.bytes(size, "sample data")
		return
	}

	// Files with the last sample cut short are quite common;
	// a shorter sample is better than no module at all.
	if !p.config.AllowTruncatedSamples {
		panic(p.r.errorf("unexpected EOF while reading sample data"))
	}
	p.warnf("truncated sample data: %d of %d bytes", p.r.remaining(), size)
	sample.Data = p.r.tail(size)
}

func (p *parser) optionalString(n int, what string) string {
	if !p.config.NeedStrings {
		p.r.skip(n, what)
		return ""
	}
	return p.r.cstring(n, what)
}
