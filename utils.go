package xmseq

import (
	"math"
)

type numeric interface {
	uint8 | int | float64
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ComputePlaybackRate returns a sample playback rate for the given note.
//
// Note 49 (C-4) of a sample with zero relative note and finetune
// plays at 8363Hz, the XM sample base frequency.
// Finetune is measured in 1/128 of a semitone.
func ComputePlaybackRate(noteNum, relativeNote, finetune int) float64 {
	semitones := float64(noteNum-1+relativeNote-48) + float64(finetune)/128
	return math.Pow(2, semitones/12) * 8363 / SampleRate
}

// portamentoFactor returns a pitch multiplier for a slide
// of rate 16ths of a semitone per tick that lasts for tempo ticks.
func portamentoFactor(rate float64, tempo int) float64 {
	return math.Pow(2, rate*float64(tempo)/(16*12))
}
