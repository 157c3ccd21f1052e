package xmseq

import (
	"unsafe"
)

// MemoryUsage approximates the decoded module size in bytes.
func (m *Module) MemoryUsage() uint {
	memoryUsage := 0
	for i := range m.Instruments {
		inst := &m.Instruments[i]
		memoryUsage += int(unsafe.Sizeof(Instrument{}))
		memoryUsage += len(inst.SampleMap)
		for j := range inst.Samples {
			memoryUsage += int(unsafe.Sizeof(Sample{}))
			memoryUsage += len(inst.Samples[j].Data) * int(unsafe.Sizeof(int16(0)))
		}
	}
	for _, p := range m.Patterns {
		memoryUsage += int(unsafe.Sizeof(Pattern{}))
		memoryUsage += len(p.Rows) * int(unsafe.Sizeof(Row{}))
		for _, row := range p.Rows {
			memoryUsage += len(row) * int(unsafe.Sizeof(Note{}))
		}
	}
	memoryUsage += len(m.PatternOrder) * int(unsafe.Sizeof(int(0)))

	return uint(memoryUsage)
}
