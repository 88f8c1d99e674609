package audio

import "encoding/binary"

// RawFrame is one device-native buffer of interleaved float samples.
// It is consumed synchronously and must not be retained by callers.
type RawFrame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration in milliseconds covered by the frame.
func (f RawFrame) DurationMs() int64 {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return int64(len(f.Samples)/f.Channels) * 1000 / int64(f.SampleRate)
}

// Chunk is one converted buffer handed to the recognizer side.
type Chunk struct {
	Samples     []int16
	SampleRate  int
	TimestampMs int64
}

// PCM returns the samples as a little-endian byte stream.
func (c Chunk) PCM() []byte {
	buf := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// DurationMs is the audio length of the chunk.
func (c Chunk) DurationMs() int64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return int64(len(c.Samples)) * 1000 / int64(c.SampleRate)
}
