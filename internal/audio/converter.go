package audio

import "math"

// TargetSampleRate is the rate every emitted chunk carries.
const TargetSampleRate = 16000

const (
	int16NegativeScale = 0x8000
	int16PositiveScale = 0x7FFF
)

// Convert mixes raw interleaved samples down to mono, resamples them to
// TargetSampleRate and quantizes the result to signed 16-bit.
func Convert(raw []float32, sourceRate, sourceChannels int) []int16 {
	mono := ToMono(raw, sourceChannels)
	return Quantize(Resample(mono, sourceRate, TargetSampleRate))
}

// Resample converts samples from sourceRate to targetRate with linear
// interpolation. Matching rates return the input slice as is.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate {
		return samples
	}
	ratio := float64(sourceRate) / float64(targetRate)
	outputLength := int(math.Round(float64(len(samples)) / ratio))
	out := make([]float32, outputLength)
	last := len(samples) - 1
	for i := range out {
		srcIndex := float64(i) * ratio
		floor := int(srcIndex)
		if floor > last {
			floor = last
		}
		ceil := floor + 1
		if ceil > last {
			ceil = last
		}
		t := srcIndex - float64(floor)
		a := float64(samples[floor])
		b := float64(samples[ceil])
		out[i] = float32(a + (b-a)*t)
	}
	return out
}

// ToMono averages each interleaved frame of channels samples into one.
func ToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(samples[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Quantize clamps to [-1, 1] and scales negatives by 0x8000 and the rest by
// 0x7FFF, so both ends of the int16 range are reachable.
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		if v < 0 {
			out[i] = int16(v * int16NegativeScale)
		} else {
			out[i] = int16(v * int16PositiveScale)
		}
	}
	return out
}

// FromInt16 maps signed 16-bit samples back to floats in [-1, 1).
func FromInt16(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / int16NegativeScale
	}
	return out
}
